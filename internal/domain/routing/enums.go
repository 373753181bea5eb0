package routing

// NodeStatus represents the lifecycle state of a routing node (disposition hop)
type NodeStatus string

const (
	NodeStatusPending    NodeStatus = "PENDING"     // belum dibaca
	NodeStatusRead       NodeStatus = "READ"        // sudah dibaca
	NodeStatusInProgress NodeStatus = "IN_PROGRESS" // sedang diproses
	NodeStatusCompleted  NodeStatus = "COMPLETED"   // selesai
	NodeStatusForwarded  NodeStatus = "FORWARDED"   // diteruskan
)

// IsValid checks if the NodeStatus is a valid value
func (s NodeStatus) IsValid() bool {
	switch s {
	case NodeStatusPending, NodeStatusRead, NodeStatusInProgress,
		NodeStatusCompleted, NodeStatusForwarded:
		return true
	}
	return false
}

// String returns the string representation of NodeStatus
func (s NodeStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses that accept no further transition
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusForwarded
}

// CanTransitionTo reports whether the state machine allows moving from s to target.
//
//	PENDING     -> READ, COMPLETED, FORWARDED
//	READ        -> IN_PROGRESS, COMPLETED, FORWARDED
//	IN_PROGRESS -> COMPLETED, FORWARDED
//
// Terminal statuses have no outgoing edges, and there are no self loops.
func (s NodeStatus) CanTransitionTo(target NodeStatus) bool {
	switch s {
	case NodeStatusPending:
		return target == NodeStatusRead || target == NodeStatusCompleted || target == NodeStatusForwarded
	case NodeStatusRead:
		return target == NodeStatusInProgress || target == NodeStatusCompleted || target == NodeStatusForwarded
	case NodeStatusInProgress:
		return target == NodeStatusCompleted || target == NodeStatusForwarded
	}
	return false
}

// DisplayName returns the Indonesian label shown in the portal
func (s NodeStatus) DisplayName() string {
	switch s {
	case NodeStatusPending:
		return "Belum Dibaca"
	case NodeStatusRead:
		return "Sudah Dibaca"
	case NodeStatusInProgress:
		return "Sedang Diproses"
	case NodeStatusCompleted:
		return "Selesai"
	case NodeStatusForwarded:
		return "Diteruskan"
	default:
		return string(s)
	}
}

// AllNodeStatuses returns all valid NodeStatus values
func AllNodeStatuses() []NodeStatus {
	return []NodeStatus{
		NodeStatusPending, NodeStatusRead, NodeStatusInProgress,
		NodeStatusCompleted, NodeStatusForwarded,
	}
}

// InstructionKind tags the nature of the request attached to a hop
type InstructionKind string

const (
	InstructionRoutine         InstructionKind = "ROUTINE"           // biasa
	InstructionUrgent          InstructionKind = "URGENT"            // segera
	InstructionCoordinate      InstructionKind = "COORDINATE"        // koordinasikan
	InstructionReviewAndReport InstructionKind = "REVIEW_AND_REPORT" // telaah dan laporkan
	InstructionCirculate       InstructionKind = "CIRCULATE"         // edarkan
	InstructionFileArchive     InstructionKind = "FILE_ARCHIVE"      // arsipkan
)

// IsValid checks if the InstructionKind is a valid value
func (k InstructionKind) IsValid() bool {
	switch k {
	case InstructionRoutine, InstructionUrgent, InstructionCoordinate,
		InstructionReviewAndReport, InstructionCirculate, InstructionFileArchive:
		return true
	}
	return false
}

// String returns the string representation of InstructionKind
func (k InstructionKind) String() string {
	return string(k)
}

// DisplayName returns the Indonesian label shown in the portal
func (k InstructionKind) DisplayName() string {
	switch k {
	case InstructionRoutine:
		return "Biasa"
	case InstructionUrgent:
		return "Segera"
	case InstructionCoordinate:
		return "Koordinasikan"
	case InstructionReviewAndReport:
		return "Telaah dan Laporkan"
	case InstructionCirculate:
		return "Edarkan"
	case InstructionFileArchive:
		return "Arsipkan"
	default:
		return string(k)
	}
}

// AllInstructionKinds returns all valid InstructionKind values
func AllInstructionKinds() []InstructionKind {
	return []InstructionKind{
		InstructionRoutine, InstructionUrgent, InstructionCoordinate,
		InstructionReviewAndReport, InstructionCirculate, InstructionFileArchive,
	}
}
