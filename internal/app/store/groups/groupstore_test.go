package groupstore_test

import (
	"errors"
	"testing"

	groupstore "github.com/dalemusser/birdbook/internal/app/store/groups"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/birdbook/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "owner01", models.RoleBasic)
	created, err := store.Create(ctx, models.Group{
		Name:        "Marsh Walkers",
		Description: "Sunday mornings at the reserve",
		Owner:       owner.Snapshot(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.NameCI != "marsh walkers" {
		t.Errorf("expected NameCI 'marsh walkers', got %q", created.NameCI)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Owner.UserID != owner.ID {
		t.Errorf("expected owner %s, got %s", owner.ID.Hex(), got.Owner.UserID.Hex())
	}
	// The owner is recorded but not enrolled.
	if got.Members == nil || len(got.Members) != 0 || got.Requests == nil || len(got.Requests) != 0 {
		t.Errorf("expected empty members and requests, got %v / %v", got.Members, got.Requests)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UpdateInfo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "owner01", models.RoleBasic)
	member := fx.CreateUser(ctx, "member1", models.RoleBasic)
	g := fx.CreateGroup(ctx, "Old Name", owner)
	if ok, err := store.AddRequest(ctx, g.ID, member.Snapshot()); err != nil || !ok {
		t.Fatalf("AddRequest = %v, %v", ok, err)
	}

	if err := store.UpdateInfo(ctx, g.ID, "New Name", "New description", "groups/abc_logo.png"); err != nil {
		t.Fatalf("UpdateInfo failed: %v", err)
	}

	got, _ := store.GetByID(ctx, g.ID)
	if got.Name != "New Name" || got.NameCI != "new name" || got.Description != "New description" || got.Image != "groups/abc_logo.png" {
		t.Errorf("unexpected info after update: %+v", got)
	}
	if len(got.Requests) != 1 {
		t.Errorf("expected requests untouched, got %v", got.Requests)
	}

	if err := store.UpdateInfo(ctx, primitive.NewObjectID(), "x", "", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing group, got %v", err)
	}
}

func TestStore_MembershipTransitions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "owner01", models.RoleBasic)
	bob := fx.CreateUser(ctx, "bobbird", models.RoleBasic)
	g := fx.CreateGroup(ctx, "Owl Prowl", owner)
	snap := bob.Snapshot()

	steps := []struct {
		name        string
		apply       func() (bool, error)
		wantApplied bool
		members     int
		requests    int
	}{
		{"approve without request", func() (bool, error) { return store.ApproveRequest(ctx, g.ID, snap) }, false, 0, 0},
		{"request", func() (bool, error) { return store.AddRequest(ctx, g.ID, snap) }, true, 0, 1},
		{"request again", func() (bool, error) { return store.AddRequest(ctx, g.ID, snap) }, false, 0, 1},
		{"approve", func() (bool, error) { return store.ApproveRequest(ctx, g.ID, snap) }, true, 1, 0},
		{"request as member", func() (bool, error) { return store.AddRequest(ctx, g.ID, snap) }, false, 1, 0},
		{"deny without request", func() (bool, error) { return store.DenyRequest(ctx, g.ID, bob.ID) }, false, 1, 0},
		{"remove", func() (bool, error) { return store.RemoveMember(ctx, g.ID, bob.ID) }, true, 0, 0},
		{"remove again", func() (bool, error) { return store.RemoveMember(ctx, g.ID, bob.ID) }, false, 0, 0},
		{"request after leaving", func() (bool, error) { return store.AddRequest(ctx, g.ID, snap) }, true, 0, 1},
		{"deny", func() (bool, error) { return store.DenyRequest(ctx, g.ID, bob.ID) }, true, 0, 0},
	}
	for _, st := range steps {
		applied, err := st.apply()
		if err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if applied != st.wantApplied {
			t.Errorf("%s: applied = %v, want %v", st.name, applied, st.wantApplied)
		}
		got, err := store.GetByID(ctx, g.ID)
		if err != nil {
			t.Fatalf("%s: GetByID: %v", st.name, err)
		}
		if len(got.Members) != st.members || len(got.Requests) != st.requests {
			t.Errorf("%s: members=%d requests=%d, want %d/%d",
				st.name, len(got.Members), len(got.Requests), st.members, st.requests)
		}
	}
}

func TestStore_ByMemberAndSearch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "owner01", models.RoleBasic)
	bob := fx.CreateUser(ctx, "bobbird", models.RoleBasic)
	coastal := fx.CreateGroup(ctx, "Coastal Birders", owner)
	fx.CreateGroup(ctx, "Hill Country Birders", owner)
	fx.CreateGroup(ctx, "Gulf Coast Watch", owner)

	store.AddRequest(ctx, coastal.ID, bob.Snapshot())
	store.ApproveRequest(ctx, coastal.ID, bob.Snapshot())

	mine, err := store.ByMember(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ByMember failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != coastal.ID {
		t.Errorf("expected [Coastal Birders], got %v", mine)
	}
	// The owner is not a member of their own groups.
	if owned, _ := store.ByMember(ctx, owner.ID); len(owned) != 0 {
		t.Errorf("expected owner to be in no member lists, got %v", owned)
	}

	tests := []struct {
		q    string
		want int
	}{
		{"birders", 2},
		{"COAST", 2},
		{"watch", 1},
		{"(", 0},
	}
	for _, tt := range tests {
		got, err := store.Search(ctx, tt.q, 20)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", tt.q, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q) = %d groups, want %d", tt.q, len(got), tt.want)
		}
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "owner01", models.RoleBasic)
	g := fx.CreateGroup(ctx, "Short Lived", owner)

	n, err := store.Delete(ctx, g.ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v; want 1, nil", n, err)
	}
	n, err = store.Delete(ctx, g.ID)
	if err != nil || n != 0 {
		t.Errorf("second Delete = %d, %v; want 0, nil", n, err)
	}
	existing, _ := store.ExistingIDs(ctx, []primitive.ObjectID{g.ID})
	if existing[g.ID] {
		t.Error("expected deleted group to be absent from ExistingIDs")
	}
}
