package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/nstogner/sitesmith/pkg/sandbox"
)

const (
	labelSandbox = "sitesmith.sandbox"
	labelExpires = "sitesmith.expires"

	// leaseDir and leaseName locate the file holding a sandbox's renewed
	// lease deadline, as Unix seconds.
	leaseDir  = "/"
	leaseName = ".sitesmith-lease"

	// WorkDir is the directory relative sandbox paths resolve against.
	WorkDir = "/home/user"
)

// Config configures the Docker provider.
type Config struct {
	// PublishHost is the host name returned for published ports.
	PublishHost string
	// ReapInterval is how often expired sandboxes are removed.
	ReapInterval time.Duration
	// OnReap, if set, receives the number of sandboxes removed by each sweep.
	OnReap func(removed int)
	// Timeout is the lease a new sandbox starts with. Defaults to
	// sandbox.DefaultTimeout.
	Timeout time.Duration
}

// leaseStore persists lease deadlines so renewals survive a restart.
type leaseStore interface {
	read(ctx context.Context, id string) (time.Time, bool, error)
	write(ctx context.Context, id string, deadline time.Time) error
}

// DockerManager implements sandbox.Provider using Docker containers. Each
// sandbox is one container created from the template image.
type DockerManager struct {
	cli *client.Client
	cfg Config

	leases leaseStore

	mu        sync.Mutex
	deadlines map[string]time.Time
	now       func() time.Time
}

// Ensure DockerManager implements sandbox.Provider
var _ sandbox.Provider = (*DockerManager)(nil)

// New creates a new DockerManager.
func New(cfg Config) (*DockerManager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if cfg.PublishHost == "" {
		cfg.PublishHost = "localhost"
	}
	if cfg.ReapInterval == 0 {
		cfg.ReapInterval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = sandbox.DefaultTimeout
	}
	return &DockerManager{
		cli:       cli,
		cfg:       cfg,
		leases:    &containerLeases{cli: cli},
		deadlines: make(map[string]time.Time),
		now:       time.Now,
	}, nil
}

// Ping reports whether the Docker daemon is reachable.
func (m *DockerManager) Ping(ctx context.Context) error {
	_, err := m.cli.Ping(ctx)
	return err
}

func (m *DockerManager) Close() error {
	return m.cli.Close()
}

func (m *DockerManager) Create(ctx context.Context, template string) (string, error) {
	if _, _, err := m.cli.ImageInspectWithRaw(ctx, template); err != nil {
		return "", fmt.Errorf("sandbox template image '%s' not found: %w", template, err)
	}

	port := nat.Port(strconv.Itoa(sandbox.PreviewPort) + "/tcp")
	expires := m.now().Add(m.cfg.Timeout)

	cfg := &container.Config{
		Image:        template,
		WorkingDir:   WorkDir,
		ExposedPorts: nat.PortSet{port: {}},
		Labels: map[string]string{
			labelSandbox: "true",
			labelExpires: strconv.FormatInt(expires.Unix(), 10),
		},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "0"}},
		},
	}

	resp, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	if err := m.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	m.mu.Lock()
	m.deadlines[resp.ID] = expires
	m.mu.Unlock()

	slog.Debug("Created sandbox container", "id", resp.ID, "image", template)
	return resp.ID, nil
}

func (m *DockerManager) Connect(ctx context.Context, id string) (sandbox.Handle, error) {
	c, err := m.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	if c.Config == nil || c.Config.Labels[labelSandbox] != "true" {
		return nil, fmt.Errorf("container %s is not a sandbox", id)
	}
	if !c.State.Running {
		return nil, fmt.Errorf("sandbox %s is not running (status %s)", id, c.State.Status)
	}
	if deadline, ok := m.deadline(ctx, c.ID, c.Config.Labels); ok && m.now().After(deadline) {
		return nil, fmt.Errorf("sandbox %s expired at %s", id, deadline.Format(time.RFC3339))
	}
	return &handle{m: m, id: c.ID}, nil
}

// Run removes sandboxes whose lease has expired until ctx is done.
func (m *DockerManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		if err := m.reap(ctx); err != nil {
			slog.Error("Sandbox reap failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *DockerManager) reap(ctx context.Context) error {
	containers, err := m.cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", labelSandbox+"=true")),
	})
	if err != nil {
		return fmt.Errorf("listing sandboxes: %w", err)
	}

	now := m.now()
	removed := 0
	for _, c := range containers {
		deadline, ok := m.deadline(ctx, c.ID, c.Labels)
		if !ok || now.Before(deadline) {
			continue
		}
		slog.Info("Removing expired sandbox", "id", c.ID, "expired", deadline)
		if err := m.cli.ContainerRemove(ctx, c.ID, types.ContainerRemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
			slog.Error("Failed to remove sandbox", "id", c.ID, "error", err)
			continue
		}
		m.mu.Lock()
		delete(m.deadlines, c.ID)
		m.mu.Unlock()
		removed++
	}
	if removed > 0 && m.cfg.OnReap != nil {
		m.cfg.OnReap(removed)
	}
	return nil
}

// deadline returns the lease deadline tracked in memory. For sandboxes
// renewed by an earlier process it reads the persisted lease, and for
// sandboxes never renewed it falls back to the creation-time label.
func (m *DockerManager) deadline(ctx context.Context, id string, labels map[string]string) (time.Time, bool) {
	m.mu.Lock()
	d, ok := m.deadlines[id]
	m.mu.Unlock()
	if ok {
		return d, true
	}

	if m.leases != nil {
		d, ok, err := m.leases.read(ctx, id)
		if err != nil {
			slog.Debug("Reading sandbox lease failed", "id", id, "error", err)
		}
		if ok {
			m.mu.Lock()
			m.deadlines[id] = d
			m.mu.Unlock()
			return d, true
		}
	}

	secs, err := strconv.ParseInt(labels[labelExpires], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

type handle struct {
	m  *DockerManager
	id string
}

func (h *handle) ID() string { return h.id }

// SetTimeout renews the lease. The deadline is persisted before it takes
// effect in memory, so a restarted process sees the same lease.
func (h *handle) SetTimeout(ctx context.Context, d time.Duration) error {
	deadline := h.m.now().Add(d)
	if h.m.leases != nil {
		if err := h.m.leases.write(ctx, h.id, deadline); err != nil {
			return fmt.Errorf("persisting lease: %w", err)
		}
	}
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	h.m.deadlines[h.id] = deadline
	return nil
}

func (h *handle) RunCommand(ctx context.Context, command string, onStdout, onStderr func(string)) (*sandbox.CommandResult, error) {
	var stdout, stderr strings.Builder
	code, err := h.exec(ctx, []string{"sh", "-c", command},
		&streamWriter{buf: &stdout, fn: onStdout},
		&streamWriter{buf: &stderr, fn: onStderr},
	)
	res := &sandbox.CommandResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: code}
	if err != nil {
		return res, err
	}
	if code != 0 {
		return res, &sandbox.ExitError{Result: *res}
	}
	return res, nil
}

func (h *handle) exec(ctx context.Context, cmd []string, stdout, stderr io.Writer) (int, error) {
	created, err := h.m.cli.ContainerExecCreate(ctx, h.id, types.ExecConfig{
		Cmd:          cmd,
		WorkingDir:   WorkDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return -1, fmt.Errorf("failed to create exec: %w", err)
	}

	attached, err := h.m.cli.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return -1, fmt.Errorf("failed to attach exec: %w", err)
	}
	defer attached.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, attached.Reader); err != nil {
		return -1, fmt.Errorf("failed to read exec output: %w", err)
	}

	inspect, err := h.m.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return -1, fmt.Errorf("failed to inspect exec: %w", err)
	}
	return inspect.ExitCode, nil
}

func (h *handle) WriteFile(ctx context.Context, p, content string) error {
	target := resolve(p)
	dir, name := path.Split(target)

	var stderr strings.Builder
	code, err := h.exec(ctx, []string{"mkdir", "-p", dir}, io.Discard, &stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("mkdir %s: %s", dir, strings.TrimSpace(stderr.String()))
	}

	return copyTo(ctx, h.m.cli, h.id, dir, name, content)
}

func (h *handle) ReadFile(ctx context.Context, p string) (string, error) {
	return copyFrom(ctx, h.m.cli, h.id, resolve(p))
}

// copyTo writes content as dir/name inside the container.
func copyTo(ctx context.Context, cli *client.Client, id, dir, name, content string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(content)),
		ModTime: time.Now(),
	}); err != nil {
		return err
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	if err := cli.CopyToContainer(ctx, id, dir, &buf, types.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path.Join(dir, name), err)
	}
	return nil
}

// copyFrom reads one file from the container.
func copyFrom(ctx context.Context, cli *client.Client, id, target string) (string, error) {
	rc, _, err := cli.CopyFromContainer(ctx, id, target)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", target, err)
	}
	defer rc.Close()
	return untar(rc, target)
}

// untar returns the single file in a copy archive.
func untar(r io.Reader, target string) (string, error) {
	tr := tar.NewReader(r)
	hdr, err := tr.Next()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", target, err)
	}
	if hdr.Typeflag == tar.TypeDir {
		return "", fmt.Errorf("%s is a directory", target)
	}
	data, err := io.ReadAll(tr)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// containerLeases keeps each lease in a file inside its own container, so
// the lease lives and dies with the sandbox.
type containerLeases struct {
	cli *client.Client
}

func (l *containerLeases) read(ctx context.Context, id string) (time.Time, bool, error) {
	target := path.Join(leaseDir, leaseName)
	rc, _, err := l.cli.CopyFromContainer(ctx, id, target)
	if client.IsErrNotFound(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	defer rc.Close()

	data, err := untar(rc, target)
	if err != nil {
		return time.Time{}, false, err
	}
	return parseLease(data)
}

func (l *containerLeases) write(ctx context.Context, id string, deadline time.Time) error {
	return copyTo(ctx, l.cli, id, leaseDir, leaseName, formatLease(deadline))
}

func formatLease(deadline time.Time) string {
	return strconv.FormatInt(deadline.Unix(), 10)
}

func parseLease(data string) (time.Time, bool, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed lease %q: %w", data, err)
	}
	return time.Unix(secs, 0), true, nil
}

func (h *handle) Host(ctx context.Context, port int) (string, error) {
	c, err := h.m.cli.ContainerInspect(ctx, h.id)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container: %w", err)
	}
	bindings := c.NetworkSettings.Ports[nat.Port(strconv.Itoa(port)+"/tcp")]
	if len(bindings) == 0 {
		return "", fmt.Errorf("container running but port %d not mapped", port)
	}
	return h.m.cfg.PublishHost + ":" + bindings[0].HostPort, nil
}

func resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(WorkDir, p)
}

// streamWriter buffers output and forwards each chunk to fn.
type streamWriter struct {
	buf *strings.Builder
	fn  func(string)
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.fn != nil {
		w.fn(string(p))
	}
	return len(p), nil
}
