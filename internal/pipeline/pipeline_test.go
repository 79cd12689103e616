package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"testing"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, a *Analysis) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, a *Analysis) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, a)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testAnalysis() *Analysis {
	return NewAnalysis(&url.URL{Scheme: "https", Host: "example.com", Path: "/"})
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected a default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	names := p.StepNames()
	expected := []string{"first", "second", "third"}
	if len(names) != len(expected) {
		t.Fatalf("got %v, expected %v", names, expected)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("step %d: got %q, expected %q", i, names[i], expected[i])
		}
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *Analysis) error {
				order = append(order, name)
				return nil
			}}
		}
		p := New(WithLogger(quietLogger()))
		p.AddSteps(record("a"), record("b"), record("c"))

		a := testAnalysis()
		if err := p.Execute(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 3 || order[0] != "a" || order[2] != "c" {
			t.Errorf("got %v, expected [a b c]", order)
		}
		if len(a.PerformedSteps) != 3 {
			t.Errorf("got %v performed steps, expected 3", a.PerformedSteps)
		}
	})

	t.Run("stops on error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *Analysis) error { return boom }}
		after := &mockStep{name: "after"}
		p := New(WithLogger(quietLogger()))
		p.AddSteps(failing, after)

		a := testAnalysis()
		if err := p.Execute(context.Background(), a); !errors.Is(err, boom) {
			t.Errorf("got %v, expected boom", err)
		}
		if after.callCount != 0 {
			t.Error("step after the failure must not run")
		}
		if !errors.Is(a.Err, boom) {
			t.Errorf("got %v recorded, expected boom", a.Err)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		failing := &mockStep{name: "failing", doFunc: func(context.Context, *Analysis) error { return errors.New("boom") }}
		after := &mockStep{name: "after"}
		p := New(WithLogger(quietLogger()), WithContinueOnError(true))
		p.AddSteps(failing, after)

		if err := p.Execute(context.Background(), testAnalysis()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if after.callCount != 1 {
			t.Error("expected the next step to run")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		first := &mockStep{name: "first", doFunc: func(context.Context, *Analysis) error {
			cancel()
			return nil
		}}
		second := &mockStep{name: "second"}
		p := New(WithLogger(quietLogger()))
		p.AddSteps(first, second)

		a := testAnalysis()
		if err := p.Execute(ctx, a); !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, expected context.Canceled", err)
		}
		if second.callCount != 0 || !a.Cancelled {
			t.Error("expected the pipeline to stop after cancellation")
		}
	})
}
