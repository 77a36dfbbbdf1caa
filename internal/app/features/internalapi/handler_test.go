package internalapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/birdbook/internal/app/client/userclient"
	"github.com/dalemusser/birdbook/internal/app/features/internalapi"
	postsvc "github.com/dalemusser/birdbook/internal/app/services/posts"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/birdbook/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func server(t *testing.T, s *testutil.Stack) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Mount("/internal", internalapi.Routes(internalapi.NewHandler(s.Users, "shh", zap.NewNop())))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestToken(t *testing.T) {
	s := testutil.NewStack(t, xref.ReadModifyWrite)
	alice := s.User(t, "alice1", models.RoleBasic)
	srv := server(t, s)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"right", "shh", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", srv.URL+"/internal/users/"+alice.ID.Hex(), nil)
			if tt.token != "" {
				req.Header.Set(userclient.TokenHeader, tt.token)
			}
			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

// The user client and the internal routes agree on paths and envelope.
func TestRoundTripWithUserClient(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t, xref.ReadModifyWrite)
	alice := s.User(t, "alice1", models.RoleBasic)
	srv := server(t, s)

	c, err := userclient.New(srv.URL, "shh", srv.Client(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pu, err := c.GetUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if pu.UserID != alice.ID || pu.Username != "alice1" {
		t.Errorf("snapshot = %+v, want alice", pu)
	}

	postID, groupID := primitive.NewObjectID(), primitive.NewObjectID()
	remote := xref.Remote{Client: c}
	if err := remote.AddPost(ctx, alice.ID, postID); err != nil {
		t.Fatalf("AddPost: %v", err)
	}
	if err := remote.AddGroup(ctx, alice.ID, groupID); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	got := s.Reload(t, alice)
	if len(got.Posts) != 1 || got.Posts[0] != postID || len(got.Groups) != 1 || got.Groups[0] != groupID {
		t.Errorf("posts=%v groups=%v, want the propagated ids", got.Posts, got.Groups)
	}

	if _, err := c.GetUser(ctx, primitive.NewObjectID()); err == nil {
		t.Error("GetUser of unknown user: want error")
	}
}

// A post service in a split deployment keeps the post when the user
// service cannot be reached for the back-reference.
func TestCreatePost_UserServiceDownForPropagation(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStack(t, xref.ReadModifyWrite)
	alice := s.User(t, "alice1", models.RoleBasic)
	srv := server(t, s)

	authors, err := userclient.New(srv.URL, "shh", srv.Client(), zap.NewNop())
	if err != nil {
		t.Fatalf("New authors client: %v", err)
	}
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()
	ledger, err := userclient.New(downURL, "shh", nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New ledger client: %v", err)
	}

	core, logs := observer.New(zap.WarnLevel)
	posts := postsvc.New(postsvc.Deps{
		Posts:      s.PostsDB,
		Users:      s.UsersDB,
		Authors:    xref.SnapshotFunc(authors.GetUser),
		Propagator: xref.Remote{Client: ledger},
		Birds:      s.BirdsDB,
		Images:     s.Images,
		Files:      s.Files,
		Log:        zap.New(core),
	})

	p, err := posts.Create(ctx, authz.Actor{ID: alice.ID, Role: models.RoleBasic}, postsvc.CreateInput{
		Header: "Heron", TextBody: "By the reeds",
	})
	if err != nil {
		t.Fatalf("Create: got %v, want success", err)
	}
	if p.User.UserID != alice.ID || p.User.Username != "alice1" {
		t.Errorf("author = %+v, want alice snapshot from the user service", p.User)
	}
	if _, err := s.PostsDB.GetByID(ctx, p.ID); err != nil {
		t.Errorf("post not persisted: %v", err)
	}
	if got := s.Reload(t, alice).Posts; len(got) != 0 {
		t.Errorf("alice.posts = %v, want empty", got)
	}
	if n := logs.FilterMessage("back-reference propagation dropped").Len(); n != 1 {
		t.Errorf("dropped propagation warnings = %d, want 1", n)
	}
}
