package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewRespectsLevel(t *testing.T) {
	log := New(Options{Level: "warn"})
	if log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %v", log.GetLevel())
	}

	log = New(Options{Level: "nonsense"})
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("unknown level should default to info, got %v", log.GetLevel())
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("reconciliation started")

	if !strings.Contains(buf.String(), "reconciliation started") {
		t.Errorf("expected message in output, got: %s", buf.String())
	}
}

func TestComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := Component(NewWithWriter(buf), "risk")

	log.Info().Msg("analysis complete")

	if !strings.Contains(buf.String(), `"component":"risk"`) {
		t.Errorf("expected component field, got: %s", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	ctx := WithContext(context.Background(), log)
	got := FromContext(ctx)

	got.Info().Msg("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("logger did not survive the context round trip: %s", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	// Must not panic or return a disabled logger.
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("fallback logger is disabled")
	}
}
