package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// StatsProvider exposes collection counts for the /stats admin command without
// leaking MongoDB internals to callers.
type StatsProvider struct {
	users    countCollection
	bans     countCollection
	vehicles countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the users, bans, and
// vehicles collections.
func NewStatsProvider(users, bans, vehicles countCollection) *StatsProvider {
	return &StatsProvider{
		users:    users,
		bans:     bans,
		vehicles: vehicles,
	}
}

// CountUsers returns the number of known users.
func (p *StatsProvider) CountUsers(ctx context.Context) (int64, error) {
	return p.count(ctx, p.users, "users")
}

// CountBans returns the number of active ban records.
func (p *StatsProvider) CountBans(ctx context.Context) (int64, error) {
	return p.count(ctx, p.bans, "bans")
}

// CountVehicles returns the size of the vehicle reference list.
func (p *StatsProvider) CountVehicles(ctx context.Context) (int64, error) {
	return p.count(ctx, p.vehicles, "vehicles")
}

func (p *StatsProvider) count(ctx context.Context, coll countCollection, what string) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || coll == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", what, err)
	}

	return count, nil
}
