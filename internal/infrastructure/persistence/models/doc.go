// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: Base persistence models (BaseModel, AggregateModel, TenantAggregateModel)
//   - routing_node.go: disposition hops
//   - directory.go: actors and documents read by the directory and document adapters
//   - outbox.go: Outbox pattern model for event delivery
package models
