package store

import (
	"context"
	"errors"
	"time"

	"github.com/nstogner/sitesmith/pkg/domain"
	"github.com/nstogner/sitesmith/pkg/step"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ProjectStore manages projects.
type ProjectStore interface {
	// CreateProject persists a new project. The ID field must be set by the caller.
	CreateProject(ctx context.Context, p *domain.Project) error

	// GetProject retrieves a project by ID. Returns ErrNotFound if it does not exist.
	GetProject(ctx context.Context, id string) (*domain.Project, error)

	// ListProjects returns all projects, most recently updated first.
	ListProjects(ctx context.Context) ([]domain.Project, error)
}

// MessageStore manages the conversation of each project.
type MessageStore interface {
	// CreateMessage persists a message and its fragment, if any, and touches
	// the project's updated time. Creating a message whose ID already exists
	// is a no-op, so a retried save stays single.
	CreateMessage(ctx context.Context, m *domain.Message) error

	// ListMessages returns a project's messages with fragments, oldest first.
	ListMessages(ctx context.Context, projectID string) ([]domain.Message, error)

	// RecentMessages returns at most limit messages of a project created
	// before the given time, newest first.
	RecentMessages(ctx context.Context, projectID string, before time.Time, limit int) ([]domain.Message, error)

	// Subscribe returns a channel that emits project IDs whenever a message
	// is created. The returned func releases the subscription.
	Subscribe() (<-chan string, func())
}

// RunStore tracks accepted run events.
type RunStore interface {
	// CreateRun persists a pending run and notifies run subscribers.
	CreateRun(ctx context.Context, r *domain.Run) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if it does not exist.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// SetRunStatus updates the status of a run.
	SetRunStatus(ctx context.Context, id string, status domain.RunStatus) error

	// ListRuns returns runs with the given status, oldest first.
	ListRuns(ctx context.Context, status domain.RunStatus) ([]domain.Run, error)

	// SubscribeRuns returns a channel that emits the ID of every created run.
	SubscribeRuns() (<-chan string, func())
}

// Store is the full persistence surface used by the engine and the server.
type Store interface {
	ProjectStore
	MessageStore
	RunStore
	step.Journal
}
