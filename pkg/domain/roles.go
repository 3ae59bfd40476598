package domain

// Role identifies who authored a project message.
type Role string

const (
	// RoleUser indicates a message typed by the user.
	RoleUser Role = "USER"
	// RoleAssistant indicates a message produced by a run.
	RoleAssistant Role = "ASSISTANT"
)

// MessageType classifies a project message.
type MessageType string

const (
	// TypeResult is a normal message. User messages are always RESULT.
	TypeResult MessageType = "RESULT"
	// TypeError marks a run that did not produce a usable fragment.
	TypeError MessageType = "ERROR"
)

// RunStatus tracks a run's progress.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)
