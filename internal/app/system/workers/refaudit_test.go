package workers_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/birdbook/internal/app/store/memstore"
	"github.com/dalemusser/birdbook/internal/app/system/workers"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReferenceAudit_CountsStaleReferences(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUsers()
	posts := memstore.NewPosts()
	groups := memstore.NewGroups()

	alice, _ := users.Create(ctx, models.User{Username: "alice"})
	bobby, _ := users.Create(ctx, models.User{Username: "bobby"})
	live, _ := posts.Create(ctx, models.Post{User: alice.Snapshot(), TextBody: "heron"})
	club, _ := groups.Create(ctx, models.Group{Name: "Waders", Owner: alice.Snapshot()})

	deletedPost := primitive.NewObjectID()
	deletedGroup := primitive.NewObjectID()
	deletedUser := primitive.NewObjectID()

	alice.Posts = []primitive.ObjectID{live.ID, deletedPost, deletedPost}
	alice.Groups = []primitive.ObjectID{club.ID, deletedGroup}
	alice.Friends = []primitive.ObjectID{bobby.ID, deletedUser}
	users.Put(alice)

	core, logs := observer.New(zap.InfoLevel)
	w := workers.NewReferenceAudit(users, posts, groups, zap.New(core), time.Hour)

	rep, err := w.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	want := workers.AuditReport{Users: 2, StalePosts: 2, StaleGroups: 1, StaleFriends: 1}
	if rep != want {
		t.Errorf("got %+v, want %+v", rep, want)
	}
	if logs.FilterMessage("stale back-references found").Len() != 1 {
		t.Error("expected a warning log for stale references")
	}

	// report-only: nothing was repaired
	after, _ := users.GetByID(ctx, alice.ID)
	if len(after.Posts) != 3 {
		t.Errorf("audit must not modify posts array: got %d ids, want 3", len(after.Posts))
	}
}

func TestReferenceAudit_Clean(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUsers()
	users.Create(ctx, models.User{Username: "alice"})

	w := workers.NewReferenceAudit(users, memstore.NewPosts(), memstore.NewGroups(), zap.NewNop(), time.Hour)
	rep, err := w.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if rep.Stale() != 0 {
		t.Errorf("got %d stale, want 0", rep.Stale())
	}
}

func TestReferenceAudit_StartStop(t *testing.T) {
	w := workers.NewReferenceAudit(memstore.NewUsers(), memstore.NewPosts(), memstore.NewGroups(), zap.NewNop(), 5*time.Millisecond)
	w.Start()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
