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

type banCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// BanRepository persists ban records. A record's presence is the ban itself;
// at most one exists per user.
type BanRepository struct {
	bans banCollection
}

// NewBanRepository constructs a BanRepository over the bans collection.
func NewBanRepository(bans banCollection) *BanRepository {
	return &BanRepository{bans: bans}
}

// Set bans a user, overwriting the reason and timestamp of any existing record.
func (r *BanRepository) Set(ctx context.Context, userID int64, reason string) error {
	if r == nil || r.bans == nil {
		return errors.New("ban repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if userID == 0 {
		return errors.New("user id is required")
	}
	if reason == "" {
		reason = domain.DefaultBanReason
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err := r.bans.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{
			"user_id":   userID,
			"reason":    reason,
			"banned_at": now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("set ban: %w", err)
	}

	return nil
}

// Clear lifts a ban and reports whether a record was actually removed.
func (r *BanRepository) Clear(ctx context.Context, userID int64) (bool, error) {
	if r == nil || r.bans == nil {
		return false, errors.New("ban repository is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if userID == 0 {
		return false, errors.New("user id is required")
	}

	result, err := r.bans.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return false, fmt.Errorf("clear ban: %w", err)
	}

	return result != nil && result.DeletedCount > 0, nil
}

// IsBanned reports whether a ban record exists for the user.
func (r *BanRepository) IsBanned(ctx context.Context, userID int64) (bool, error) {
	if r == nil || r.bans == nil {
		return false, errors.New("ban repository is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if userID == 0 {
		return false, errors.New("user id is required")
	}

	count, err := r.bans.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}

	return count > 0, nil
}

// List returns all ban records, newest first.
func (r *BanRepository) List(ctx context.Context) ([]domain.BanRecord, error) {
	if r == nil || r.bans == nil {
		return nil, errors.New("ban repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := r.bans.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "banned_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	defer cursor.Close(ctx)

	var bans []domain.BanRecord
	if err := cursor.All(ctx, &bans); err != nil {
		return nil, fmt.Errorf("decode bans: %w", err)
	}

	return bans, nil
}
