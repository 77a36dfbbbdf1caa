package testutil

import (
	"context"
	"testing"

	"github.com/dalemusser/birdbook/internal/app/enrich"
	birdsvc "github.com/dalemusser/birdbook/internal/app/services/birds"
	groupsvc "github.com/dalemusser/birdbook/internal/app/services/groups"
	postsvc "github.com/dalemusser/birdbook/internal/app/services/posts"
	searchsvc "github.com/dalemusser/birdbook/internal/app/services/search"
	usersvc "github.com/dalemusser/birdbook/internal/app/services/users"
	"github.com/dalemusser/birdbook/internal/app/store/memstore"
	"github.com/dalemusser/birdbook/internal/app/system/objectstore"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.uber.org/zap"
)

// Stack is every service wired in-process over memstore, the way a
// single "all" deployment runs them.
type Stack struct {
	UsersDB  *memstore.Users
	PostsDB  *memstore.Posts
	GroupsDB *memstore.Groups
	BirdsDB  *memstore.Birds
	Files    *objectstore.Local
	Images   *enrich.Images

	Users  *usersvc.Service
	Posts  *postsvc.Service
	Groups *groupsvc.Service
	Birds  *birdsvc.Service
	Search *searchsvc.Service
}

// NewStack builds a Stack in the given array update mode. Uploaded files
// land in a per-test temp dir.
func NewStack(t *testing.T, mode xref.Mode) *Stack {
	t.Helper()
	log := zap.NewNop()
	s := &Stack{
		UsersDB:  memstore.NewUsers(),
		PostsDB:  memstore.NewPosts(),
		GroupsDB: memstore.NewGroups(),
		BirdsDB:  memstore.NewBirds(),
		Files:    objectstore.NewLocal(t.TempDir(), "/files"),
	}
	s.Images = enrich.NewImages(s.Files, 0, nil, log)

	s.Users = usersvc.New(usersvc.Deps{
		Users:  s.UsersDB,
		Posts:  s.PostsDB,
		Groups: s.GroupsDB,
		Birds:  s.BirdsDB,
		Files:  s.Files,
		Mode:   mode,
		Log:    log,
	})
	authors := xref.SnapshotFunc(s.Users.Snapshot)
	prop := xref.Local{Ledger: s.Users}

	s.Posts = postsvc.New(postsvc.Deps{
		Posts:      s.PostsDB,
		Users:      s.UsersDB,
		Authors:    authors,
		Propagator: prop,
		Birds:      s.BirdsDB,
		Images:     s.Images,
		Files:      s.Files,
		Mode:       mode,
		Log:        log,
	})
	s.Groups = groupsvc.New(groupsvc.Deps{
		Groups:     s.GroupsDB,
		Authors:    authors,
		Propagator: prop,
		Images:     s.Images,
		Files:      s.Files,
		Mode:       mode,
		Log:        log,
	})
	s.Birds = birdsvc.New(s.BirdsDB, s.Images, s.Files, log)
	s.Search = searchsvc.New(s.Birds, s.Users, s.Posts, s.Groups)
	return s
}

// User seeds a user with the given role.
func (s *Stack) User(t *testing.T, username, role string) models.User {
	t.Helper()
	u, err := s.UsersDB.Create(context.Background(), models.User{Username: username, Role: role})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

// Reload re-reads a user from the store.
func (s *Stack) Reload(t *testing.T, u models.User) models.User {
	t.Helper()
	got, err := s.UsersDB.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("reload user %s: %v", u.Username, err)
	}
	return got
}

// Bird seeds a catalogue entry.
func (s *Stack) Bird(t *testing.T, commonName string) models.Bird {
	t.Helper()
	b, err := s.BirdsDB.Create(context.Background(), models.Bird{CommonName: commonName})
	if err != nil {
		t.Fatalf("seed bird %s: %v", commonName, err)
	}
	return b
}
