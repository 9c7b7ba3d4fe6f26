package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recorder struct {
	errs   []error
	panics []any
	tags   []map[string]string
}

func (r *recorder) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func (r *recorder) CapturePanic(v any, tags map[string]string) {
	r.panics = append(r.panics, v)
	r.tags = append(r.tags, tags)
}

func (r *recorder) Flush(time.Duration) bool { return true }

func withRecorder(t *testing.T) *recorder {
	t.Helper()
	prev := current
	r := &recorder{}
	Init(r)
	t.Cleanup(func() { current = prev })
	return r
}

func TestCaptureException(t *testing.T) {
	r := withRecorder(t)
	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"run_id": "r1"})
	if len(r.errs) != 1 || r.tags[0]["run_id"] != "r1" {
		t.Fatalf("unexpected captures %v %v", r.errs, r.tags)
	}
	Init(nil)
	if Current() != r {
		t.Fatalf("nil monitor should be ignored")
	}
}

func TestGuard(t *testing.T) {
	r := withRecorder(t)
	want := errors.New("plain")
	if err := Guard(nil, func() error { return want }); err != want {
		t.Fatalf("expected passthrough error got %v", err)
	}
	err := Guard(map[string]string{"op": "plan"}, func() error { panic("index out of range") })
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "index out of range" {
		t.Fatalf("expected panic error got %v", err)
	}
	if len(r.panics) != 1 || r.tags[0]["op"] != "plan" {
		t.Fatalf("panic not reported: %v", r.panics)
	}
}
