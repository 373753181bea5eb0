package dto

// CreateDispositionRequest opens a new disposition for a document. The
// authenticated actor is the sender.
type CreateDispositionRequest struct {
	DocumentID      string `json:"document_id" binding:"required,uuid"`
	ToActorID       string `json:"to_actor_id" binding:"required,uuid"`
	InstructionKind string `json:"instruction_kind" binding:"required,instruction_kind"`
	Note            string `json:"note" binding:"max=2000"`
}

// ForwardDispositionRequest forwards a disposition to the next recipient
type ForwardDispositionRequest struct {
	ToActorID       string `json:"to_actor_id" binding:"required,uuid"`
	InstructionKind string `json:"instruction_kind" binding:"required,instruction_kind"`
	Note            string `json:"note" binding:"max=2000"`
}

// InboxRequest filters the caller's inbox. Status is a comma-separated list.
type InboxRequest struct {
	Status   string `form:"status"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// HealthResponse reports the state of the service and its dependencies
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
