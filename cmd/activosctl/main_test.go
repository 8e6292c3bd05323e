package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/activos-fijos/activos/cmd/activosctl/cli"
)

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), nil, &stdout, &stderr); code != cli.ExitError {
		t.Fatalf("expected exit %d, got %d", cli.ExitError, code)
	}
	if !strings.Contains(stderr.String(), "uso: activosctl") {
		t.Fatalf("expected usage, got %q", stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	state := filepath.Join(t.TempDir(), "session.json")
	code := run(context.Background(), []string{"--state", state, "reindexar"}, &stdout, &stderr)
	if code != cli.ExitError {
		t.Fatalf("expected exit %d, got %d", cli.ExitError, code)
	}
	if !strings.Contains(stderr.String(), `comando desconocido "reindexar"`) {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestRunWhoamiWithoutSession(t *testing.T) {
	var stdout, stderr bytes.Buffer
	state := filepath.Join(t.TempDir(), "session.json")
	code := run(context.Background(), []string{"--state", state, "whoami"}, &stdout, &stderr)
	if code != cli.ExitUnauthenticated {
		t.Fatalf("expected exit %d, got %d (%s)", cli.ExitUnauthenticated, code, stderr.String())
	}
}
