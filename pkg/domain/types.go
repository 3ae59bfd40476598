package domain

import "time"

// EventRun is the name of the event that starts a code agent run.
const EventRun = "code-agent/run"

// Project groups a conversation and the fragments it produced.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one entry in a project's conversation.
type Message struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"projectId"`
	Content   string      `json:"content"`
	Role      Role        `json:"role"`
	Type      MessageType `json:"type"`
	Fragment  *Fragment   `json:"fragment,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Fragment is the artifact of a successful run: the live preview and the
// files written to produce it.
type Fragment struct {
	ID         string            `json:"id"`
	MessageID  string            `json:"messageId"`
	SandboxURL string            `json:"sandboxUrl"`
	Title      string            `json:"title"`
	Files      map[string]string `json:"files"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// RunRequest is the payload of a code-agent/run event.
type RunRequest struct {
	Value     string `json:"value" validate:"required,min=1,max=10000"`
	ProjectID string `json:"projectId" validate:"required"`
}

// Run is the durable record of an accepted run event.
type Run struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Value     string    `json:"value"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RunOutput is what a finished run returns to its caller.
type RunOutput struct {
	URL     string            `json:"url"`
	Title   string            `json:"title"`
	Files   map[string]string `json:"files"`
	Summary string            `json:"summary"`
}
