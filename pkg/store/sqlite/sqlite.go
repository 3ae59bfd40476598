package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nstogner/sitesmith/pkg/domain"
	"github.com/nstogner/sitesmith/pkg/step"
	"github.com/nstogner/sitesmith/pkg/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db       *sql.DB
	messages *store.Broker
	runs     *store.Broker
}

// Verify interface compliance at compile time.
var _ store.Store = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db, messages: store.NewBroker(), runs: store.NewBroker()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		content TEXT NOT NULL,
		role TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_project ON messages(project_id, created_at);

	CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL UNIQUE,
		sandbox_url TEXT NOT NULL,
		title TEXT NOT NULL,
		files TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		value TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, created_at);

	CREATE TABLE IF NOT EXISTS step_journal (
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		output BLOB,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, name)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- ProjectStore ---

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	p := &domain.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	return p, err
}

func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// --- MessageStore ---

func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.UpdatedAt = m.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, project_id, content, role, type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		m.ID, m.ProjectID, m.Content, m.Role, m.Type, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if f := m.Fragment; f != nil {
		f.MessageID = m.ID
		f.CreatedAt = m.CreatedAt
		files, err := json.Marshal(f.Files)
		if err != nil {
			return fmt.Errorf("encode fragment files: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fragments (id, message_id, sandbox_url, title, files, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			f.ID, f.MessageID, f.SandboxURL, f.Title, string(files), f.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert fragment: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET updated_at = ? WHERE id = ?`, m.CreatedAt, m.ProjectID,
	); err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.messages.Publish(m.ProjectID)
	return nil
}

const messageColumns = `m.id, m.project_id, m.content, m.role, m.type, m.created_at, m.updated_at,
	f.id, f.sandbox_url, f.title, f.files, f.created_at`

func (s *Store) ListMessages(ctx context.Context, projectID string) ([]domain.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m LEFT JOIN fragments f ON f.message_id = m.id
		 WHERE m.project_id = ? ORDER BY m.created_at ASC, m.rowid ASC`,
		projectID,
	)
}

func (s *Store) RecentMessages(ctx context.Context, projectID string, before time.Time, limit int) ([]domain.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m LEFT JOIN fragments f ON f.message_id = m.id
		 WHERE m.project_id = ? AND m.created_at < ?
		 ORDER BY m.created_at DESC, m.rowid DESC LIMIT ?`,
		projectID, before.UTC(), limit,
	)
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			m          domain.Message
			fragID     sql.NullString
			fragURL    sql.NullString
			fragTitle  sql.NullString
			fragFiles  sql.NullString
			fragCreate sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Content, &m.Role, &m.Type, &m.CreatedAt, &m.UpdatedAt,
			&fragID, &fragURL, &fragTitle, &fragFiles, &fragCreate,
		); err != nil {
			return nil, err
		}
		if fragID.Valid {
			f := &domain.Fragment{
				ID:         fragID.String,
				MessageID:  m.ID,
				SandboxURL: fragURL.String,
				Title:      fragTitle.String,
				CreatedAt:  fragCreate.Time,
			}
			if err := json.Unmarshal([]byte(fragFiles.String), &f.Files); err != nil {
				return nil, fmt.Errorf("decode fragment files: %w", err)
			}
			m.Fragment = f
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) Subscribe() (<-chan string, func()) {
	return s.messages.Subscribe()
}

// --- RunStore ---

func (s *Store) CreateRun(ctx context.Context, r *domain.Run) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = domain.RunPending
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project_id, value, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProjectID, r.Value, r.Status, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		return err
	}
	s.runs.Publish(r.ID)
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	r := &domain.Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, value, status, created_at, updated_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.ProjectID, &r.Value, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	return r, err
}

func (s *Store) SetRunStatus(ctx context.Context, id string, status domain.RunStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, status domain.RunStatus) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, value, status, created_at, updated_at
		 FROM runs WHERE status = ? ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var r domain.Run
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Value, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) SubscribeRuns() (<-chan string, func()) {
	return s.runs.Subscribe()
}

// --- step.Journal ---

func (s *Store) Load(ctx context.Context, runID, name string) (step.Record, bool, error) {
	rec := step.Record{Name: name}
	var output []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT output, failed, error, recorded_at FROM step_journal WHERE run_id = ? AND name = ?`,
		runID, name,
	).Scan(&output, &rec.Failed, &rec.Error, &rec.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return step.Record{}, false, nil
	}
	if err != nil {
		return step.Record{}, false, err
	}
	if len(output) > 0 {
		rec.Output = json.RawMessage(output)
	}
	return rec, true, nil
}

func (s *Store) Save(ctx context.Context, runID string, rec step.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO step_journal (run_id, name, output, failed, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, rec.Name, []byte(rec.Output), rec.Failed, rec.Error, rec.RecordedAt.UTC(),
	)
	return err
}

// Forget deletes the journal records of a run.
func (s *Store) Forget(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM step_journal WHERE run_id = ?`, runID)
	return err
}
