// Package state implements the persisted conversation state engine behind the
// report wizard. Each user has at most one record: current step plus the
// answers accumulated so far. The engine persists every change; the absence
// of a record is the idle state.
package state

import (
	"context"
	"errors"
	"fmt"

	"metro_report_bot/internal/domain"
)

// Store is the persistence contract the engine requires. Implementations must
// make each call atomic; the engine layers no locking of its own on top
// (per-user events are processed in order, writes are last-writer-wins).
type Store interface {
	Get(ctx context.Context, userID int64) (*domain.ConversationState, error)
	Set(ctx context.Context, state domain.ConversationState) error
	Delete(ctx context.Context, userID int64) error
}

// Engine tracks each user's position in the wizard and the data collected so
// far, persisting every transition.
type Engine struct {
	store Store
}

// NewEngine constructs an Engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Step returns the user's current wizard step, StepIdle when no record exists.
func (e *Engine) Step(ctx context.Context, userID int64) (domain.Step, error) {
	if e == nil || e.store == nil {
		return domain.StepIdle, errors.New("state engine is not initialized")
	}

	record, err := e.store.Get(ctx, userID)
	if err != nil {
		return domain.StepIdle, fmt.Errorf("get step: %w", err)
	}
	if record == nil {
		return domain.StepIdle, nil
	}

	return record.Step, nil
}

// SetStep moves the user to the given step, preserving accumulated data. The
// write is an idempotent overwrite.
func (e *Engine) SetStep(ctx context.Context, userID int64, step domain.Step) error {
	if e == nil || e.store == nil {
		return errors.New("state engine is not initialized")
	}

	record, err := e.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("set step: %w", err)
	}
	if record == nil {
		record = &domain.ConversationState{
			UserID: userID,
			Data:   map[string]string{},
		}
	}

	record.Step = step
	if err := e.store.Set(ctx, *record); err != nil {
		return fmt.Errorf("set step: %w", err)
	}

	return nil
}

// Data returns a copy of the user's accumulated answers, empty when no record
// exists.
func (e *Engine) Data(ctx context.Context, userID int64) (map[string]string, error) {
	if e == nil || e.store == nil {
		return nil, errors.New("state engine is not initialized")
	}

	record, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get data: %w", err)
	}
	if record == nil || record.Data == nil {
		return map[string]string{}, nil
	}

	data := make(map[string]string, len(record.Data))
	for k, v := range record.Data {
		data[k] = v
	}

	return data, nil
}

// SetField writes a single answer, initializing a record at StepIdle when none
// exists.
func (e *Engine) SetField(ctx context.Context, userID int64, key, value string) error {
	return e.MergeFields(ctx, userID, map[string]string{key: value})
}

// MergeFields writes several answers in one read-modify-write, initializing a
// record at StepIdle when none exists. Existing keys not named in updates are
// kept.
func (e *Engine) MergeFields(ctx context.Context, userID int64, updates map[string]string) error {
	if e == nil || e.store == nil {
		return errors.New("state engine is not initialized")
	}
	if len(updates) == 0 {
		return nil
	}

	record, err := e.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("merge fields: %w", err)
	}
	if record == nil {
		record = &domain.ConversationState{
			UserID: userID,
			Step:   domain.StepIdle,
		}
	}
	if record.Data == nil {
		record.Data = map[string]string{}
	}

	for k, v := range updates {
		record.Data[k] = v
	}

	if err := e.store.Set(ctx, *record); err != nil {
		return fmt.Errorf("merge fields: %w", err)
	}

	return nil
}

// Clear deletes the user's conversation record entirely; used on completion
// and cancellation.
func (e *Engine) Clear(ctx context.Context, userID int64) error {
	if e == nil || e.store == nil {
		return errors.New("state engine is not initialized")
	}

	if err := e.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}

	return nil
}
