// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNew_FiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(&buf, "warn", FormatText)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("hidden")
	l.Warn("shown", "remote", "workflow")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "workflow") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(&buf, "debug", FormatJSON)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Debug("resolved", "name", "workflow")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestNew_RejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, "loud", FormatText); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(&bytes.Buffer{}, "info", Format("xml")); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestFromContext_FallsBackToDiscard(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() returned nil")
	}

	var buf bytes.Buffer
	l, err := New(&buf, "info", FormatText)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("carried")
	if !strings.Contains(buf.String(), "carried") {
		t.Errorf("logger from context did not write: %q", buf.String())
	}
}
