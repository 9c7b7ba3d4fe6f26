package monitoring

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kilianp07/twinplan/config"
	"github.com/kilianp07/twinplan/core/model"
	coremon "github.com/kilianp07/twinplan/core/monitoring"
)

func TestNewSentryMonitor_EmptyDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.(coremon.NopMonitor); !ok {
		t.Fatalf("expected NopMonitor got %T", m)
	}
}

func TestNewSentryMonitor_BadDSN(t *testing.T) {
	if _, err := NewSentryMonitor(config.SentryConfig{DSN: "not a dsn"}); err == nil {
		t.Fatalf("expected error for malformed DSN")
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"invariant":       model.NewInvariantError("overlap"),
		"incomplete_data": fmt.Errorf("load: %w", model.ErrIncompleteData),
		"validation":      model.ErrMalformedWindow,
		"internal":        errors.New("disk full"),
	}
	for want, err := range cases {
		if got := errorKind(err); got != want {
			t.Fatalf("%v: expected %s got %s", err, want, got)
		}
	}
	if got := errorKind(&model.ValidationError{Kind: model.ErrInvalidRequest, Field: "priority"}); got != "validation" {
		t.Fatalf("invalid request: expected validation got %s", got)
	}
}
