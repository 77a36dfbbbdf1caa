package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/birdbook/internal/app/store/memstore"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUsers_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewUsers()
	u, err := s.Create(ctx, models.User{Username: "alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, _ := s.GetByID(ctx, u.ID)
	got.Posts = append(got.Posts, primitive.NewObjectID())

	again, _ := s.GetByID(ctx, u.ID)
	if len(again.Posts) != 0 {
		t.Errorf("mutating a read copy leaked into the store: posts=%v", again.Posts)
	}
}

func TestUsers_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewUsers()
	if _, err := s.Create(ctx, models.User{Username: "Alice"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, models.User{Username: "alice"}); !errors.Is(err, apperr.ErrDuplicateUsername) {
		t.Errorf("got %v, want ErrDuplicateUsername", err)
	}
}

func TestUsers_FailHook(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewUsers()
	u, _ := s.Create(ctx, models.User{Username: "alice"})
	boom := errors.New("boom")
	s.SetFail(memstore.FailOn("PushPost", u.ID, boom))

	if err := s.PushPost(ctx, u.ID, primitive.NewObjectID()); !errors.Is(err, boom) {
		t.Errorf("PushPost: got %v, want injected error", err)
	}
	if err := s.PushGroup(ctx, u.ID, primitive.NewObjectID()); err != nil {
		t.Errorf("PushGroup should be unaffected: %v", err)
	}
}

func TestUsers_MutateMissing(t *testing.T) {
	s := memstore.NewUsers()
	err := s.PushPost(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	if !apperr.IsNotFound(err) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestPosts_CommentMatching(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewPosts()
	author := primitive.NewObjectID()
	ts := models.Now()
	p, _ := s.Create(ctx, models.Post{TextBody: "heron"})

	for _, txt := range []string{"one", "two"} {
		c := models.Comment{ID: primitive.NewObjectID(), User: models.PostUser{UserID: author}, TextBody: txt, Timestamp: ts}
		if err := s.PushComment(ctx, p.ID, c); err != nil {
			t.Fatalf("PushComment: %v", err)
		}
	}

	ok, err := s.SetCommentText(ctx, p.ID, author, ts, "edited")
	if err != nil || !ok {
		t.Fatalf("SetCommentText: ok=%v err=%v", ok, err)
	}
	got, _ := s.GetByID(ctx, p.ID)
	if got.Comments[0].TextBody != "edited" || got.Comments[1].TextBody != "two" {
		t.Errorf("only the first match should change: %+v", got.Comments)
	}

	ok, _ = s.PullComments(ctx, p.ID, author, ts)
	got, _ = s.GetByID(ctx, p.ID)
	if !ok || len(got.Comments) != 0 {
		t.Errorf("PullComments should remove every match: ok=%v comments=%d", ok, len(got.Comments))
	}

	ok, err = s.SetCommentText(ctx, primitive.NewObjectID(), author, ts, "x")
	if ok || err != nil {
		t.Errorf("missing post: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestGroups_Transitions(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewGroups()
	g, _ := s.Create(ctx, models.Group{Name: "Waders"})
	u := models.PostUser{UserID: primitive.NewObjectID(), Username: "bobby"}

	steps := []struct {
		name string
		run  func() (bool, error)
		want bool
	}{
		{"approve without request", func() (bool, error) { return s.ApproveRequest(ctx, g.ID, u) }, false},
		{"request", func() (bool, error) { return s.AddRequest(ctx, g.ID, u) }, true},
		{"request again", func() (bool, error) { return s.AddRequest(ctx, g.ID, u) }, false},
		{"approve", func() (bool, error) { return s.ApproveRequest(ctx, g.ID, u) }, true},
		{"request as member", func() (bool, error) { return s.AddRequest(ctx, g.ID, u) }, false},
		{"remove", func() (bool, error) { return s.RemoveMember(ctx, g.ID, u.UserID) }, true},
		{"remove again", func() (bool, error) { return s.RemoveMember(ctx, g.ID, u.UserID) }, false},
	}
	for _, st := range steps {
		got, err := st.run()
		if err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if got != st.want {
			t.Errorf("%s: got %v, want %v", st.name, got, st.want)
		}
	}
}

func TestSearch_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	birds := memstore.NewBirds()
	birds.Create(ctx, models.Bird{CommonName: "Great Blue Heron", ScientificName: "Ardea herodias"})
	birds.Create(ctx, models.Bird{CommonName: "American Kestrel", ScientificName: "Falco sparverius"})

	got, _ := birds.Search(ctx, "ARDEA", 20)
	if len(got) != 1 || got[0].CommonName != "Great Blue Heron" {
		t.Errorf("got %+v, want the heron", got)
	}
}
