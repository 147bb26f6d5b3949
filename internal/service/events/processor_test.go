package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
)

type dispatchMock struct {
	startFn  func(ctx context.Context, id uuid.UUID) error
	cancelFn func(ctx context.Context, id uuid.UUID, reason string) error
}

func (m *dispatchMock) StartMatching(ctx context.Context, id uuid.UUID) error {
	return m.startFn(ctx, id)
}

func (m *dispatchMock) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	return m.cancelFn(ctx, id, reason)
}

func TestHandle_CreatedStartsMatching(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	var started []uuid.UUID
	p := NewProcessor(&dispatchMock{
		startFn: func(_ context.Context, got uuid.UUID) error {
			started = append(started, got)
			return nil
		},
	}, nil)

	if err := p.Handle(context.Background(), Event{Type: "created", DeliveryID: id.String()}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(started) != 1 || started[0] != id {
		t.Fatalf("started = %v, want [%s]", started, id)
	}
}

func TestHandle_CancelVariants(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{"cancelled", "canceled", "deleted", " CANCELLED "} {
		typ := typ
		t.Run(typ, func(t *testing.T) {
			t.Parallel()

			id := uuid.New()
			var gotReason string
			p := NewProcessor(&dispatchMock{
				cancelFn: func(_ context.Context, got uuid.UUID, reason string) error {
					if got != id {
						t.Fatalf("delivery id = %s, want %s", got, id)
					}
					gotReason = reason
					return nil
				},
			}, nil)

			err := p.Handle(context.Background(), Event{Type: typ, DeliveryID: id.String()})
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if gotReason != "cancelled_upstream" {
				t.Fatalf("reason = %q, want cancelled_upstream", gotReason)
			}
		})
	}
}

func TestHandle_CancelKeepsExplicitReason(t *testing.T) {
	t.Parallel()

	var gotReason string
	p := NewProcessor(&dispatchMock{
		cancelFn: func(_ context.Context, _ uuid.UUID, reason string) error {
			gotReason = reason
			return nil
		},
	}, nil)

	e := Event{Type: "cancelled", DeliveryID: uuid.NewString(), Reason: "customer_request"}
	if err := p.Handle(context.Background(), e); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gotReason != "customer_request" {
		t.Fatalf("reason = %q, want customer_request", gotReason)
	}
}

func TestHandle_UnknownTypeIgnored(t *testing.T) {
	t.Parallel()

	p := NewProcessor(&dispatchMock{}, nil)

	if err := p.Handle(context.Background(), Event{Type: "updated", DeliveryID: uuid.NewString()}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestHandle_BadDeliveryIDSkipped(t *testing.T) {
	t.Parallel()

	p := NewProcessor(&dispatchMock{
		startFn: func(_ context.Context, _ uuid.UUID) error {
			t.Fatal("StartMatching should not be called")
			return nil
		},
	}, nil)

	if err := p.Handle(context.Background(), Event{Type: "created", DeliveryID: "not-a-uuid"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestHandle_ExpectedStateErrorsSwallowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		typ  string
		err  error
	}{
		{"create conflict", "created", apperr.ErrConflict},
		{"create already assigned", "created", apperr.ErrAlreadyAssigned},
		{"cancel not found", "cancelled", apperr.ErrNotFound},
		{"cancel terminal", "cancelled", apperr.ErrInvalidTransition},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := NewProcessor(&dispatchMock{
				startFn: func(_ context.Context, _ uuid.UUID) error {
					return tc.err
				},
				cancelFn: func(_ context.Context, _ uuid.UUID, _ string) error {
					return tc.err
				},
			}, nil)

			if err := p.Handle(context.Background(), Event{Type: tc.typ, DeliveryID: uuid.NewString()}); err != nil {
				t.Fatalf("Handle: %v, want nil", err)
			}
		})
	}
}

func TestHandle_UnexpectedErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	p := NewProcessor(&dispatchMock{
		startFn: func(_ context.Context, _ uuid.UUID) error {
			return boom
		},
	}, nil)

	if err := p.Handle(context.Background(), Event{Type: "created", DeliveryID: uuid.NewString()}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
