package store

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeVehicleCollection struct {
	findDocs []interface{}

	count int64

	deleteCalled bool
	inserted     []interface{}
}

func (f *fakeVehicleCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return mongo.NewCursorFromDocuments(f.findDocs, nil, nil)
}

func (f *fakeVehicleCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return f.count, nil
}

func (f *fakeVehicleCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.deleteCalled = true
	return &mongo.DeleteResult{}, nil
}

func (f *fakeVehicleCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	f.inserted = documents
	return &mongo.InsertManyResult{}, nil
}

func TestVehicleListPreservesOrder(t *testing.T) {
	coll := &fakeVehicleCollection{findDocs: []interface{}{
		bson.M{"name": "A", "position": 0},
		bson.M{"name": "B", "position": 1},
	}}
	repo := NewVehicleRepository(coll)

	names, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestVehicleReplaceWritesWholesale(t *testing.T) {
	coll := &fakeVehicleCollection{}
	repo := NewVehicleRepository(coll)

	if err := repo.Replace(context.Background(), []string{"A", "B"}); err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}

	if !coll.deleteCalled {
		t.Fatalf("expected existing list to be cleared first")
	}
	if len(coll.inserted) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(coll.inserted))
	}

	first, ok := coll.inserted[0].(vehicleDoc)
	if !ok {
		t.Fatalf("expected vehicleDoc, got %T", coll.inserted[0])
	}
	if first.Name != "A" || first.Position != 0 {
		t.Fatalf("expected positional ordering, got %+v", first)
	}
}

func TestVehicleReplaceRejectsEmptyList(t *testing.T) {
	repo := NewVehicleRepository(&fakeVehicleCollection{})

	if err := repo.Replace(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty list")
	}
}

func TestVehicleSeedDefaultsOnlyWhenEmpty(t *testing.T) {
	coll := &fakeVehicleCollection{count: 0}
	repo := NewVehicleRepository(coll)

	seeded, err := repo.SeedDefaults(context.Background())
	if err != nil {
		t.Fatalf("SeedDefaults returned error: %v", err)
	}
	if !seeded {
		t.Fatalf("expected empty collection to be seeded")
	}
	if len(coll.inserted) != len(DefaultVehicles) {
		t.Fatalf("expected %d defaults, got %d", len(DefaultVehicles), len(coll.inserted))
	}

	coll = &fakeVehicleCollection{count: 5}
	repo = NewVehicleRepository(coll)

	seeded, err = repo.SeedDefaults(context.Background())
	if err != nil {
		t.Fatalf("SeedDefaults returned error: %v", err)
	}
	if seeded {
		t.Fatalf("expected non-empty collection to be left alone")
	}
	if coll.deleteCalled {
		t.Fatalf("expected no replacement for non-empty collection")
	}
}
