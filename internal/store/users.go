package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"metro_report_bot/internal/domain"
)

type userCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// UserRepository persists and retrieves users. The user id is immutable;
// username and first name are refreshed on every sighting.
type UserRepository struct {
	users userCollection
}

// NewUserRepository constructs a UserRepository over the users collection.
func NewUserRepository(users userCollection) *UserRepository {
	return &UserRepository{users: users}
}

// Upsert records a sighting of the user: creates the record on first contact
// and refreshes username, first name, and last_seen_at afterwards. It reports
// whether a new record was created.
func (r *UserRepository) Upsert(ctx context.Context, userID int64, username, firstName string) (bool, error) {
	if r == nil || r.users == nil {
		return false, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if userID == 0 {
		return false, errors.New("user id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"username":     username,
			"first_name":   firstName,
			"last_seen_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"created_at": now,
		},
	}

	result, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert user: %w", err)
	}

	return result != nil && result.UpsertedCount > 0, nil
}

// GetByID fetches a user by Telegram user id.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	if r == nil || r.users == nil {
		return domain.User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return domain.User{}, errors.New("context is required")
	}
	if userID == 0 {
		return domain.User{}, errors.New("user id is required")
	}

	return decodeUser(r.users.FindOne(ctx, bson.M{"user_id": userID}))
}

// GetByUsername fetches a user by handle, matching case-insensitively.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	if r == nil || r.users == nil {
		return domain.User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return domain.User{}, errors.New("context is required")
	}
	if username == "" {
		return domain.User{}, errors.New("username is required")
	}

	filter := bson.M{"username": primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(username) + "$",
		Options: "i",
	}}

	return decodeUser(r.users.FindOne(ctx, filter))
}

// ListIDs returns the ids of every known user; this is the broadcast
// recipient list.
func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	if r == nil || r.users == nil {
		return nil, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := r.users.Find(ctx, bson.D{},
		options.Find().SetProjection(bson.M{"user_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []int64
	for cursor.Next(ctx) {
		var doc struct {
			UserID int64 `bson:"user_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user id: %w", err)
		}
		ids = append(ids, doc.UserID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}

	return ids, nil
}

// Recent returns the most recently registered users, newest first.
func (r *UserRepository) Recent(ctx context.Context, limit int64) ([]domain.User, error) {
	if r == nil || r.users == nil {
		return nil, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}

	cursor, err := r.users.Find(ctx, bson.D{},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list recent users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode recent users: %w", err)
	}

	return users, nil
}

func decodeUser(result *mongo.SingleResult) (domain.User, error) {
	if result == nil {
		return domain.User{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}

	var user domain.User
	if err := result.Decode(&user); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}
