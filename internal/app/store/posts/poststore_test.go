package poststore_test

import (
	"errors"
	"testing"
	"time"

	poststore "github.com/dalemusser/birdbook/internal/app/store/posts"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/birdbook/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateUser(ctx, "author1", models.RoleBasic)
	created, err := store.Create(ctx, models.Post{
		User:     author.Snapshot(),
		Header:   "Heron at dawn",
		TextBody: "Standing still in the shallows",
		Tags:     map[string]string{"habitat": "marsh"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID || created.Timestamp.IsZero() {
		t.Errorf("expected id and timestamp to be assigned, got %+v", created)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.Timestamp.Equal(created.Timestamp) {
		t.Errorf("timestamp did not round-trip: stored %v, got %v", created.Timestamp, got.Timestamp)
	}
	if got.Likes == nil || got.Comments == nil {
		t.Errorf("expected empty likes and comments, got %v / %v", got.Likes, got.Comments)
	}
	if got.Bird != nil || got.Group != nil {
		t.Errorf("expected no bird or group, got %v / %v", got.Bird, got.Group)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Queries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fx.CreateUser(ctx, "alice01", models.RoleBasic)
	bob := fx.CreateUser(ctx, "bobbird", models.RoleBasic)
	group := primitive.NewObjectID()

	a1, _ := store.Create(ctx, models.Post{User: alice.Snapshot(), Header: "Kingfisher", TextBody: "blue flash", Group: &group,
		Tags: map[string]string{"habitat": "river", "season": "spring"}, Timestamp: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)})
	a2, _ := store.Create(ctx, models.Post{User: alice.Snapshot(), Header: "Owl", TextBody: "barn owl (juvenile)",
		Tags: map[string]string{"habitat": "river"}, Timestamp: time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)})
	store.Create(ctx, models.Post{User: bob.Snapshot(), Header: "Gull", TextBody: "on the pier",
		Timestamp: time.Date(2024, 4, 3, 8, 0, 0, 0, time.UTC)})

	byUser, err := store.ByUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ByUser failed: %v", err)
	}
	if len(byUser) != 2 || byUser[0].ID != a2.ID || byUser[1].ID != a1.ID {
		t.Errorf("expected alice's posts newest first, got %v", byUser)
	}

	byGroup, _ := store.ByGroup(ctx, group)
	if len(byGroup) != 1 || byGroup[0].ID != a1.ID {
		t.Errorf("expected [Kingfisher] in group, got %v", byGroup)
	}

	tagTests := []struct {
		tags map[string]string
		want int
	}{
		{map[string]string{"habitat": "river"}, 2},
		{map[string]string{"habitat": "river", "season": "spring"}, 1},
		{map[string]string{"habitat": "forest"}, 0},
	}
	for _, tt := range tagTests {
		got, err := store.ByTags(ctx, tt.tags)
		if err != nil {
			t.Fatalf("ByTags(%v) failed: %v", tt.tags, err)
		}
		if len(got) != tt.want {
			t.Errorf("ByTags(%v) = %d posts, want %d", tt.tags, len(got), tt.want)
		}
	}

	searchTests := []struct {
		q    string
		want int
	}{
		{"owl", 1},
		{"(juvenile)", 1},
		{"PIER", 1},
		{"", 3},
	}
	for _, tt := range searchTests {
		got, err := store.Search(ctx, tt.q, 20)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", tt.q, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q) = %d posts, want %d", tt.q, len(got), tt.want)
		}
	}
}

func TestStore_Likes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateUser(ctx, "author1", models.RoleBasic)
	liker := fx.CreateUser(ctx, "liker01", models.RoleBasic)
	p := fx.CreatePost(ctx, author, "Wren", nil)

	for i := 0; i < 2; i++ {
		if err := store.AddLike(ctx, p.ID, liker.ID); err != nil {
			t.Fatalf("AddLike failed: %v", err)
		}
	}
	got, _ := store.GetByID(ctx, p.ID)
	if len(got.Likes) != 1 {
		t.Errorf("expected a single like after liking twice, got %v", got.Likes)
	}

	if err := store.RemoveLike(ctx, p.ID, liker.ID); err != nil {
		t.Fatalf("RemoveLike failed: %v", err)
	}
	if err := store.RemoveLike(ctx, p.ID, liker.ID); err != nil {
		t.Errorf("removing an absent like should succeed, got %v", err)
	}
	got, _ = store.GetByID(ctx, p.ID)
	if len(got.Likes) != 0 {
		t.Errorf("expected no likes, got %v", got.Likes)
	}

	if err := store.AddLike(ctx, primitive.NewObjectID(), liker.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing post, got %v", err)
	}
}

func TestStore_Comments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateUser(ctx, "author1", models.RoleBasic)
	bob := fx.CreateUser(ctx, "bobbird", models.RoleBasic)
	p := fx.CreatePost(ctx, author, "Egret", nil)
	ts := models.Now()

	c := models.Comment{ID: primitive.NewObjectID(), User: bob.Snapshot(), TextBody: "Lovely", Timestamp: ts}
	if err := store.PushComment(ctx, p.ID, c); err != nil {
		t.Fatalf("PushComment failed: %v", err)
	}

	tests := []struct {
		name   string
		userID primitive.ObjectID
		ts     time.Time
		want   bool
	}{
		{"wrong author", author.ID, ts, false},
		{"wrong timestamp", bob.ID, ts.Add(time.Millisecond), false},
		{"match", bob.ID, ts, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := store.SetCommentText(ctx, p.ID, tt.userID, tt.ts, "Edited")
			if err != nil {
				t.Fatalf("SetCommentText failed: %v", err)
			}
			if ok != tt.want {
				t.Errorf("matched = %v, want %v", ok, tt.want)
			}
		})
	}

	got, _ := store.GetByID(ctx, p.ID)
	if len(got.Comments) != 1 || got.Comments[0].TextBody != "Edited" {
		t.Errorf("expected edited comment, got %v", got.Comments)
	}

	ok, err := store.PullComments(ctx, p.ID, bob.ID, ts)
	if err != nil || !ok {
		t.Fatalf("PullComments = %v, %v", ok, err)
	}
	ok, _ = store.PullComments(ctx, p.ID, bob.ID, ts)
	if ok {
		t.Error("expected second PullComments to match nothing")
	}
}

func TestStore_UpdateContent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := poststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateUser(ctx, "author1", models.RoleBasic)
	bird := fx.CreateBird(ctx, "Great Egret", "Ardea alba")
	p := fx.CreatePost(ctx, author, "Egret", &bird.ID)
	store.AddLike(ctx, p.ID, author.ID)

	p.Header = "Great Egret"
	p.Bird = nil
	p.Tags = map[string]string{"lat": "29.7"}
	if err := store.UpdateContent(ctx, p); err != nil {
		t.Fatalf("UpdateContent failed: %v", err)
	}

	got, _ := store.GetByID(ctx, p.ID)
	if got.Header != "Great Egret" || got.Bird != nil || got.Tags["lat"] != "29.7" {
		t.Errorf("unexpected content after update: %+v", got)
	}
	if len(got.Likes) != 1 {
		t.Errorf("expected likes untouched, got %v", got.Likes)
	}

	if err := store.SetFlagged(ctx, p.ID, true); err != nil {
		t.Fatalf("SetFlagged failed: %v", err)
	}
	if err := store.SetHelp(ctx, p.ID, true); err != nil {
		t.Fatalf("SetHelp failed: %v", err)
	}
	got, _ = store.GetByID(ctx, p.ID)
	if !got.Flagged || !got.Help {
		t.Errorf("expected flagged and help set, got %v / %v", got.Flagged, got.Help)
	}
}
