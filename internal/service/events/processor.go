package events

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/logx"
)

// Processor processes delivery lifecycle events
type Processor struct {
	dispatch DispatchPort
	log      logx.Logger
	factory  *actionFactory
}

// NewProcessor creates a new events.Processor
func NewProcessor(dispatch DispatchPort, log logx.Logger) *Processor {
	if log == nil {
		log = logx.Nop()
	}
	p := &Processor{
		dispatch: dispatch,
		log:      log,
	}
	p.factory = newActionFactory(p.onCreated, p.onCancelled)
	return p
}

// Handle processes a single events.Event
func (p *Processor) Handle(ctx context.Context, e Event) error {
	if p.factory == nil {
		return nil
	}
	fn, ok := p.factory.get(e.Type)
	if !ok {
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onCreated(ctx context.Context, e Event) error {
	id, err := uuid.Parse(e.DeliveryID)
	if err != nil {
		p.log.Warn("events: bad delivery id", logx.String("delivery_id", e.DeliveryID))
		return nil
	}
	err = p.dispatch.StartMatching(ctx, id)
	if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrAlreadyAssigned) {
		return nil
	}
	return err
}

func (p *Processor) onCancelled(ctx context.Context, e Event) error {
	id, err := uuid.Parse(e.DeliveryID)
	if err != nil {
		p.log.Warn("events: bad delivery id", logx.String("delivery_id", e.DeliveryID))
		return nil
	}
	reason := e.Reason
	if reason == "" {
		reason = "cancelled_upstream"
	}
	err = p.dispatch.Cancel(ctx, id, reason)
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidTransition) {
		return nil
	}
	return err
}
