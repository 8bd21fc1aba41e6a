package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultVehicles seeds the reference list on first start, before admins have
// curated their own.
var DefaultVehicles = []string{
	"9050-9051 (Голубая смерть)",
	"10222-10221 (Боинг)",
	"🟣 Балтиец 🟣",
	"🔴 Балтиец 🔴",
	"🔵 Балтиец 🔵",
	"🟤 Балтиец 🟤",
	"Темат 320 лет",
	"Темат 70 лет",
	"Темат 25 состав",
	"НВЛ (мойка)",
	"7128-6973",
	"7144-6977",
	"Ретросостав",
	"Перегонка",
	"Обкатка",
	"ЭКА",
	"Лаборатория",
	"Неизвестен",
}

type vehicleCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

type vehicleDoc struct {
	Name     string `bson:"name"`
	Position int    `bson:"position"`
}

// VehicleRepository persists the admin-curated vehicle reference list. The
// list is replaced wholesale on edit; the position field preserves the order
// the admin submitted.
type VehicleRepository struct {
	vehicles vehicleCollection
}

// NewVehicleRepository constructs a VehicleRepository over the vehicles
// collection.
func NewVehicleRepository(vehicles vehicleCollection) *VehicleRepository {
	return &VehicleRepository{vehicles: vehicles}
}

// List returns the current reference list in curated order.
func (r *VehicleRepository) List(ctx context.Context) ([]string, error) {
	if r == nil || r.vehicles == nil {
		return nil, errors.New("vehicle repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := r.vehicles.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []vehicleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}

	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.Name)
	}

	return names, nil
}

// Replace swaps the whole reference list for the given names. Callers must
// pass an already deduplicated list; names are stored in slice order.
func (r *VehicleRepository) Replace(ctx context.Context, names []string) error {
	if r == nil || r.vehicles == nil {
		return errors.New("vehicle repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if len(names) == 0 {
		return errors.New("vehicle list cannot be empty")
	}

	if _, err := r.vehicles.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clear vehicles: %w", err)
	}

	docs := make([]interface{}, 0, len(names))
	for i, name := range names {
		docs = append(docs, vehicleDoc{Name: name, Position: i})
	}

	if _, err := r.vehicles.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert vehicles: %w", err)
	}

	return nil
}

// SeedDefaults installs the default vehicle list when the collection is empty.
// It reports whether seeding happened.
func (r *VehicleRepository) SeedDefaults(ctx context.Context) (bool, error) {
	if r == nil || r.vehicles == nil {
		return false, errors.New("vehicle repository is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}

	count, err := r.vehicles.CountDocuments(ctx, bson.D{})
	if err != nil {
		return false, fmt.Errorf("count vehicles: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if err := r.Replace(ctx, DefaultVehicles); err != nil {
		return false, fmt.Errorf("seed vehicles: %w", err)
	}

	return true, nil
}
