package docker_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nstogner/sitesmith/pkg/sandbox"
	"github.com/nstogner/sitesmith/pkg/sandbox/docker"
)

// TestIntegration_DockerManager runs against a local Docker daemon. Set
// SANDBOX_TEST_IMAGE to an image that stays running (for example one whose
// command is "sleep infinity").
func TestIntegration_DockerManager(t *testing.T) {
	image := os.Getenv("SANDBOX_TEST_IMAGE")
	if image == "" {
		t.Skip("SANDBOX_TEST_IMAGE not set")
	}

	mgr, err := docker.New(docker.Config{})
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := mgr.Ping(ctx); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}

	id, err := mgr.Create(ctx, image)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	h, err := mgr.Connect(ctx, id)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer h.SetTimeout(context.Background(), -time.Second)

	if err := h.SetTimeout(ctx, time.Hour); err != nil {
		t.Fatalf("SetTimeout failed: %v", err)
	}
	restarted, err := docker.New(docker.Config{Timeout: time.Nanosecond})
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer restarted.Close()
	if _, err := restarted.Connect(ctx, id); err != nil {
		t.Fatalf("Connect after restart failed: %v", err)
	}

	if err := h.WriteFile(ctx, "app/page.tsx", "export default function Page() {}"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := h.ReadFile(ctx, "app/page.tsx")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got != "export default function Page() {}" {
		t.Errorf("ReadFile = %q", got)
	}

	var streamed strings.Builder
	res, err := h.RunCommand(ctx, "cat app/page.tsx", func(s string) { streamed.WriteString(s) }, nil)
	if err != nil {
		t.Fatalf("RunCommand failed: %v", err)
	}
	if res.Stdout != got || streamed.String() != got {
		t.Errorf("stdout = %q, streamed = %q", res.Stdout, streamed.String())
	}

	_, err = h.RunCommand(ctx, "echo oops >&2; false", nil, nil)
	exitErr, ok := err.(*sandbox.ExitError)
	if !ok {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if !strings.Contains(exitErr.Result.Stderr, "oops") {
		t.Errorf("stderr = %q", exitErr.Result.Stderr)
	}
}
