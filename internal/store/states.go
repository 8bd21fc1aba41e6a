package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"metro_report_bot/internal/domain"
)

type stateCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// StateRepository persists per-user conversation records. Writes are
// last-writer-wins whole-record replacements; every write refreshes
// updated_at so a concurrent staleness sweep retains the record.
type StateRepository struct {
	states stateCollection
}

// NewStateRepository constructs a StateRepository over the states collection.
func NewStateRepository(states stateCollection) *StateRepository {
	return &StateRepository{states: states}
}

// Get returns the conversation record for the user, or nil when none exists.
func (r *StateRepository) Get(ctx context.Context, userID int64) (*domain.ConversationState, error) {
	if r == nil || r.states == nil {
		return nil, errors.New("state repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if userID == 0 {
		return nil, errors.New("user id is required")
	}

	result := r.states.FindOne(ctx, bson.M{"user_id": userID})
	if result == nil {
		return nil, errors.New("find state returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find state: %w", err)
	}

	var state domain.ConversationState
	if err := result.Decode(&state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	return &state, nil
}

// Set overwrites the user's conversation record, stamping updated_at with the
// current time.
func (r *StateRepository) Set(ctx context.Context, state domain.ConversationState) error {
	if r == nil || r.states == nil {
		return errors.New("state repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if state.UserID == 0 {
		return errors.New("user id is required")
	}

	state.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if state.Data == nil {
		state.Data = map[string]string{}
	}

	_, err := r.states.ReplaceOne(ctx,
		bson.M{"user_id": state.UserID},
		state,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}

	return nil
}

// Delete removes the user's conversation record entirely.
func (r *StateRepository) Delete(ctx context.Context, userID int64) error {
	if r == nil || r.states == nil {
		return errors.New("state repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if userID == 0 {
		return errors.New("user id is required")
	}

	if _, err := r.states.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}

	return nil
}

// DeleteStale removes conversation records whose updated_at is strictly older
// than the timeout and returns how many were swept.
func (r *StateRepository) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if r == nil || r.states == nil {
		return 0, errors.New("state repository is not initialized")
	}
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if olderThan <= 0 {
		return 0, errors.New("timeout must be greater than 0")
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := r.states.DeleteMany(ctx, bson.M{
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("delete stale states: %w", err)
	}

	if result == nil {
		return 0, nil
	}
	return result.DeletedCount, nil
}
