package docker

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	tests := map[string]string{
		"app/page.tsx":         "/home/user/app/page.tsx",
		"./app/../README.md":   "/home/user/README.md",
		"/etc/hosts":           "/etc/hosts",
		"/home/user//app/a.ts": "/home/user/app/a.ts",
	}
	for in, want := range tests {
		if got := resolve(in); got != want {
			t.Errorf("resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeadlineFallsBackToLabel(t *testing.T) {
	ctx := context.Background()
	m := &DockerManager{deadlines: make(map[string]time.Time), now: time.Now}

	labels := map[string]string{labelExpires: "1700000000"}
	d, ok := m.deadline(ctx, "c1", labels)
	if !ok {
		t.Fatal("expected label deadline")
	}
	if d.Unix() != 1700000000 {
		t.Errorf("deadline = %d, want 1700000000", d.Unix())
	}

	extended := time.Unix(1800000000, 0)
	m.deadlines["c1"] = extended
	d, _ = m.deadline(ctx, "c1", labels)
	if !d.Equal(extended) {
		t.Errorf("deadline = %v, want %v", d, extended)
	}

	if _, ok := m.deadline(ctx, "c2", map[string]string{}); ok {
		t.Error("expected no deadline without label")
	}
}

// fakeLeases stands in for the lease files kept inside containers.
type fakeLeases struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

func (f *fakeLeases) read(ctx context.Context, id string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.leases[id]
	return d, ok, nil
}

func (f *fakeLeases) write(ctx context.Context, id string, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leases[id] = deadline
	return nil
}

func TestRenewedLeaseSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)
	leases := &fakeLeases{leases: make(map[string]time.Time)}
	labels := map[string]string{labelExpires: strconv.FormatInt(t0.Add(10*time.Minute).Unix(), 10)}

	// Renewed 8 minutes after creation.
	first := &DockerManager{leases: leases, deadlines: make(map[string]time.Time), now: func() time.Time { return t0.Add(8 * time.Minute) }}
	h := &handle{m: first, id: "c1"}
	if err := h.SetTimeout(ctx, 10*time.Minute); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}

	// A new process 12 minutes after creation still sees the renewed lease.
	now := t0.Add(12 * time.Minute)
	restarted := &DockerManager{leases: leases, deadlines: make(map[string]time.Time), now: func() time.Time { return now }}
	d, ok := restarted.deadline(ctx, "c1", labels)
	if !ok {
		t.Fatal("expected a deadline")
	}
	if want := t0.Add(18 * time.Minute); !d.Equal(want) {
		t.Errorf("deadline = %v, want %v", d, want)
	}
	if now.After(d) {
		t.Error("renewed sandbox reported as expired after restart")
	}

	// Never renewed: the label still applies.
	d, _ = restarted.deadline(ctx, "c2", labels)
	if want := t0.Add(10 * time.Minute); !d.Equal(want) {
		t.Errorf("deadline = %v, want %v", d, want)
	}
}

func TestLeaseFormat(t *testing.T) {
	d := time.Unix(1700000000, 0)
	got, ok, err := parseLease(formatLease(d) + "\n")
	if err != nil || !ok {
		t.Fatalf("parseLease: %v %v", ok, err)
	}
	if !got.Equal(d) {
		t.Errorf("lease = %v, want %v", got, d)
	}
	if _, _, err := parseLease("soon"); err == nil {
		t.Error("expected error for malformed lease")
	}
}

func TestStreamWriter(t *testing.T) {
	var buf strings.Builder
	var chunks []string
	w := &streamWriter{buf: &buf, fn: func(s string) { chunks = append(chunks, s) }}

	w.Write([]byte("hello "))
	w.Write([]byte("world"))

	if buf.String() != "hello world" {
		t.Errorf("buffer = %q", buf.String())
	}
	if len(chunks) != 2 {
		t.Errorf("chunks = %v, want 2", chunks)
	}
}
