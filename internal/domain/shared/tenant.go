package shared

import "github.com/google/uuid"

// DefaultTenantID is used when a request names no tenant. Single-agency
// deployments never set one.
var DefaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
