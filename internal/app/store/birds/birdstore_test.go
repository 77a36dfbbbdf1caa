package birdstore_test

import (
	"errors"
	"testing"

	birdstore "github.com/dalemusser/birdbook/internal/app/store/birds"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/birdbook/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := birdstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Bird{
		CommonName:     "Roseate Spoonbill",
		ScientificName: "Platalea ajaja",
		Location:       []float64{-95.36, 29.76},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.CommonNameCI != "roseate spoonbill" {
		t.Errorf("expected CommonNameCI 'roseate spoonbill', got %q", created.CommonNameCI)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ScientificName != "Platalea ajaja" || len(got.Location) != 2 || got.Location[1] != 29.76 {
		t.Errorf("unexpected bird: %+v", got)
	}

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SearchByEitherName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := birdstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateBird(ctx, "Great Blue Heron", "Ardea herodias")
	fx.CreateBird(ctx, "Great Egret", "Ardea alba")
	fx.CreateBird(ctx, "Barn Owl", "Tyto alba")

	tests := []struct {
		q     string
		limit int64
		want  int
	}{
		{"great", 20, 2},
		{"ARDEA", 20, 2},
		{"alba", 20, 2},
		{"alba", 1, 1},
		{"owl", 20, 1},
		{"a.ba", 20, 0},
	}
	for _, tt := range tests {
		got, err := store.Search(ctx, tt.q, tt.limit)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", tt.q, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q, %d) = %d birds, want %d", tt.q, tt.limit, len(got), tt.want)
		}
	}
}

func TestStore_SaveAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := birdstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	b := fx.CreateBird(ctx, "Killdeer", "Charadrius vociferus")
	b.CommonName = "Killdeer Plover"
	if err := store.Save(ctx, b); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, _ := store.GetByID(ctx, b.ID)
	if got.CommonName != "Killdeer Plover" || got.CommonNameCI != "killdeer plover" {
		t.Errorf("unexpected bird after save: %+v", got)
	}

	all, _ := store.GetByIDs(ctx, []primitive.ObjectID{b.ID, primitive.NewObjectID()})
	if len(all) != 1 {
		t.Errorf("expected GetByIDs to skip missing ids, got %d birds", len(all))
	}

	if n, err := store.Delete(ctx, b.ID); err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v; want 1, nil", n, err)
	}
	if list, _ := store.List(ctx); len(list) != 0 {
		t.Errorf("expected empty catalogue, got %v", list)
	}
}
