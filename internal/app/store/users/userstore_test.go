package userstore_test

import (
	"errors"
	"testing"

	userstore "github.com/dalemusser/birdbook/internal/app/store/users"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/indexes"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/birdbook/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{Username: "HeronFan"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.UsernameCI != "heronfan" {
		t.Errorf("expected UsernameCI 'heronfan', got %q", created.UsernameCI)
	}
	if created.Role != models.RoleBasic {
		t.Errorf("expected default role %q, got %q", models.RoleBasic, created.Role)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	// Arrays are stored empty, never null.
	if got.Friends == nil || got.Posts == nil || got.Groups == nil {
		t.Errorf("expected empty arrays, got friends=%v posts=%v groups=%v", got.Friends, got.Posts, got.Groups)
	}
}

func TestStore_Create_DuplicateUsername(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	if _, err := store.Create(ctx, models.User{Username: "owlwatch"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err := store.Create(ctx, models.User{Username: "OwlWatch"})
	if !errors.Is(err, apperr.ErrDuplicateUsername) {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_GetByUsername_CaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "KestrelK", models.RoleBasic)

	tests := []struct {
		lookup  string
		wantErr error
	}{
		{"KestrelK", nil},
		{"kestrelk", nil},
		{"KESTRELK", nil},
		{"kestrel", apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.lookup, func(t *testing.T) {
			got, err := store.GetByUsername(ctx, tt.lookup)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetByUsername failed: %v", err)
			}
			if got.ID != u.ID {
				t.Errorf("got id %s, want %s", got.ID.Hex(), u.ID.Hex())
			}
		})
	}
}

func TestStore_GetByIDs_SkipsMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fx.CreateUser(ctx, "alpha1", models.RoleBasic)
	b := fx.CreateUser(ctx, "bravo2", models.RoleBasic)

	got, err := store.GetByIDs(ctx, []primitive.ObjectID{b.ID, primitive.NewObjectID(), a.ID})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Errorf("expected [alpha1 bravo2] in username order, got %v", got)
	}

	empty, err := store.GetByIDs(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty result for no ids, got %v, %v", empty, err)
	}
}

func TestStore_Save_LastWriterWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "ternlover", models.RoleBasic)

	// Two stale copies each append a different post id and save.
	first, second := u.Clone(), u.Clone()
	p1, p2 := primitive.NewObjectID(), primitive.NewObjectID()
	first.Posts = append(first.Posts, p1)
	second.Posts = append(second.Posts, p2)
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save first failed: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save second failed: %v", err)
	}

	got, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Posts) != 1 || got.Posts[0] != p2 {
		t.Errorf("expected only the second writer's post, got %v", got.Posts)
	}
}

func TestStore_ArrayOperators(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "gullwing", models.RoleBasic)
	friend := primitive.NewObjectID()
	post := primitive.NewObjectID()
	group := primitive.NewObjectID()

	// Duplicates are kept, matching the read-modify-write path.
	for i := 0; i < 2; i++ {
		if err := store.PushFriend(ctx, u.ID, friend); err != nil {
			t.Fatalf("PushFriend failed: %v", err)
		}
	}
	if err := store.PushPost(ctx, u.ID, post); err != nil {
		t.Fatalf("PushPost failed: %v", err)
	}
	if err := store.PushGroup(ctx, u.ID, group); err != nil {
		t.Fatalf("PushGroup failed: %v", err)
	}

	got, _ := store.GetByID(ctx, u.ID)
	if len(got.Friends) != 2 {
		t.Errorf("expected 2 friend entries, got %v", got.Friends)
	}
	if len(got.Posts) != 1 || got.Posts[0] != post {
		t.Errorf("expected posts [%s], got %v", post.Hex(), got.Posts)
	}
	if len(got.Groups) != 1 || got.Groups[0] != group {
		t.Errorf("expected groups [%s], got %v", group.Hex(), got.Groups)
	}

	if err := store.PullFriend(ctx, u.ID, friend); err != nil {
		t.Fatalf("PullFriend failed: %v", err)
	}
	got, _ = store.GetByID(ctx, u.ID)
	if len(got.Friends) != 0 {
		t.Errorf("expected every copy pulled, got %v", got.Friends)
	}

	if err := store.PushPost(ctx, primitive.NewObjectID(), post); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing user, got %v", err)
	}
}

func TestStore_SearchAndExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fx.CreateUser(ctx, "egretone", models.RoleBasic)
	fx.CreateUser(ctx, "egrettwo", models.RoleBasic)
	fx.CreateUser(ctx, "ploverx1", models.RoleBasic)

	tests := []struct {
		q     string
		limit int64
		want  int
	}{
		{"egret", 20, 2},
		{"EGRET", 1, 1},
		{"plover", 20, 1},
		{"e.ret", 20, 0}, // regex metacharacters are literal
	}
	for _, tt := range tests {
		got, err := store.Search(ctx, tt.q, tt.limit)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", tt.q, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q, %d) = %d users, want %d", tt.q, tt.limit, len(got), tt.want)
		}
	}

	missing := primitive.NewObjectID()
	existing, err := store.ExistingIDs(ctx, []primitive.ObjectID{a.ID, missing})
	if err != nil {
		t.Fatalf("ExistingIDs failed: %v", err)
	}
	if !existing[a.ID] || existing[missing] {
		t.Errorf("expected only %s to exist, got %v", a.ID.Hex(), existing)
	}
}
