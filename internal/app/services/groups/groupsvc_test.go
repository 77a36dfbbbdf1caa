package groupsvc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	groupsvc "github.com/dalemusser/birdbook/internal/app/services/groups"
	usersvc "github.com/dalemusser/birdbook/internal/app/services/users"
	"github.com/dalemusser/birdbook/internal/app/store/memstore"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	svc    *groupsvc.Service
	users  *memstore.Users
	groups *memstore.Groups
	owner  models.User
	group  models.Group
}

func newFixture(t *testing.T, mode xref.Mode, onApprove bool) fixture {
	t.Helper()
	f := fixture{users: memstore.NewUsers(), groups: memstore.NewGroups()}
	ledger := usersvc.New(usersvc.Deps{
		Users: f.users, Posts: memstore.NewPosts(), Groups: f.groups, Birds: memstore.NewBirds(), Mode: mode,
	})
	f.svc = groupsvc.New(groupsvc.Deps{
		Groups:             f.groups,
		Authors:            xref.SnapshotFunc(ledger.Snapshot),
		Propagator:         xref.Local{Ledger: ledger},
		Mode:               mode,
		PropagateOnApprove: onApprove,
	})
	f.owner = f.user(t, "owner1")
	g, err := f.svc.Create(context.Background(), self(f.owner), groupsvc.Input{Name: "Marsh Watchers", Description: "Wetland birds"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	f.group = g
	return f
}

func (f fixture) user(t *testing.T, name string) models.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), models.User{Username: name})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f fixture) load(t *testing.T) models.Group {
	t.Helper()
	g, err := f.groups.GetByID(context.Background(), f.group.ID)
	if err != nil {
		t.Fatalf("load group: %v", err)
	}
	return g
}

func self(u models.User) authz.Actor { return authz.Actor{ID: u.ID, Role: models.RoleBasic} }

var modes = []xref.Mode{xref.ReadModifyWrite, xref.Atomic}

func count(list []models.PostUser, id primitive.ObjectID) int {
	n := 0
	for _, u := range list {
		if u.UserID == id {
			n++
		}
	}
	return n
}

func TestCreate_OwnerNotMemberAndPropagated(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, mode, false)
			if f.group.Owner.UserID != f.owner.ID {
				t.Errorf("owner = %v, want %v", f.group.Owner.UserID, f.owner.ID)
			}
			if len(f.group.Members) != 0 {
				t.Errorf("members = %v, want empty", f.group.Members)
			}
			u, _ := f.users.GetByID(context.Background(), f.owner.ID)
			if len(u.Groups) != 1 || u.Groups[0] != f.group.ID {
				t.Errorf("owner.groups = %v, want [%s]", u.Groups, f.group.ID.Hex())
			}
		})
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, xref.ReadModifyWrite, false)
	tests := []struct {
		name string
		in   groupsvc.Input
	}{
		{"blank name", groupsvc.Input{Name: "  "}},
		{"long name", groupsvc.Input{Name: "a very long group name that exceeds forty characters"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), self(f.owner), tt.in); !apperr.IsValidation(err) {
				t.Errorf("got %v, want validation error", err)
			}
		})
	}
}

func TestRequestToJoin_Twice(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode, false)
			m := f.user(t, "member1")

			if _, err := f.svc.RequestToJoin(ctx, self(m), f.group.ID); err != nil {
				t.Fatalf("first request: %v", err)
			}
			_, err := f.svc.RequestToJoin(ctx, self(m), f.group.ID)
			if !errors.Is(err, apperr.ErrAlreadyRequested) {
				t.Errorf("second request: got %v, want ErrAlreadyRequested", err)
			}
			if n := count(f.load(t).Requests, m.ID); n != 1 {
				t.Errorf("requests for m = %d, want 1", n)
			}
		})
	}
}

func TestApprove_WithoutRequest(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode, false)
			m := f.user(t, "member1")
			before := f.load(t).Members

			_, err := f.svc.Approve(ctx, self(f.owner), f.group.ID, m.ID)
			if !errors.Is(err, apperr.ErrNoRequestFound) {
				t.Errorf("got %v, want ErrNoRequestFound", err)
			}
			if after := f.load(t).Members; len(after) != len(before) {
				t.Errorf("members changed: got %v, want %v", after, before)
			}
		})
	}
}

func TestStateMachine_Exclusive(t *testing.T) {
	type step struct {
		name string
		do   func(f fixture, m models.User) error
		want error
	}
	ctx := context.Background()
	request := func(f fixture, m models.User) error { _, err := f.svc.RequestToJoin(ctx, self(m), f.group.ID); return err }
	approve := func(f fixture, m models.User) error { _, err := f.svc.Approve(ctx, self(f.owner), f.group.ID, m.ID); return err }
	deny := func(f fixture, m models.User) error { _, err := f.svc.Deny(ctx, self(f.owner), f.group.ID, m.ID); return err }
	remove := func(f fixture, m models.User) error { _, err := f.svc.RemoveMember(ctx, self(f.owner), f.group.ID, m.ID); return err }
	leave := func(f fixture, m models.User) error { _, err := f.svc.RemoveMember(ctx, self(m), f.group.ID, m.ID); return err }

	steps := []step{
		{"deny without request", deny, apperr.ErrNoRequestFound},
		{"remove non-member", remove, apperr.ErrNotAMember},
		{"request", request, nil},
		{"deny", deny, nil},
		{"request again", request, nil},
		{"approve", approve, nil},
		{"request as member", request, apperr.ErrAlreadyMember},
		{"approve as member", approve, apperr.ErrNoRequestFound},
		{"leave", leave, nil},
		{"leave again", leave, apperr.ErrNotAMember},
		{"request after leaving", request, nil},
		{"approve", approve, nil},
		{"remove", remove, nil},
	}

	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, mode, false)
			m := f.user(t, "member1")
			for _, s := range steps {
				err := s.do(f, m)
				if s.want == nil && err != nil {
					t.Fatalf("%s: %v", s.name, err)
				}
				if s.want != nil && !errors.Is(err, s.want) {
					t.Errorf("%s: got %v, want %v", s.name, err, s.want)
				}
				g := f.load(t)
				if count(g.Members, m.ID)+count(g.Requests, m.ID) > 1 {
					t.Fatalf("%s: m in members %d times and requests %d times", s.name, count(g.Members, m.ID), count(g.Requests, m.ID))
				}
			}
		})
	}
}

func TestApprove_Authorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, xref.ReadModifyWrite, false)
	m := f.user(t, "member1")
	other := f.user(t, "other1")
	_, _ = f.svc.RequestToJoin(ctx, self(m), f.group.ID)

	if _, err := f.svc.Approve(ctx, self(other), f.group.ID, m.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("non-owner approve: got %v, want ErrForbidden", err)
	}
	if _, err := f.svc.Requests(ctx, self(other), f.group.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("non-owner requests: got %v, want ErrForbidden", err)
	}
	admin := authz.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	g, err := f.svc.Approve(ctx, admin, f.group.ID, m.ID)
	if err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	if count(g.Members, m.ID) != 1 {
		t.Errorf("members = %v, want m", g.Members)
	}
}

func TestApprove_PropagationToggle(t *testing.T) {
	for _, on := range []bool{false, true} {
		ctx := context.Background()
		f := newFixture(t, xref.ReadModifyWrite, on)
		m := f.user(t, "member1")
		_, _ = f.svc.RequestToJoin(ctx, self(m), f.group.ID)
		if _, err := f.svc.Approve(ctx, self(f.owner), f.group.ID, m.ID); err != nil {
			t.Fatalf("approve: %v", err)
		}
		u, _ := f.users.GetByID(ctx, m.ID)
		want := 0
		if on {
			want = 1
		}
		if len(u.Groups) != want {
			t.Errorf("propagate=%v: m.groups = %v, want %d entries", on, u.Groups, want)
		}
	}
}

func TestRemoveMember_LeavesStaleGroupID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, xref.ReadModifyWrite, true)
	m := f.user(t, "member1")
	_, _ = f.svc.RequestToJoin(ctx, self(m), f.group.ID)
	_, _ = f.svc.Approve(ctx, self(f.owner), f.group.ID, m.ID)
	if _, err := f.svc.RemoveMember(ctx, self(f.owner), f.group.ID, m.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	u, _ := f.users.GetByID(ctx, m.ID)
	if len(u.Groups) != 1 || u.Groups[0] != f.group.ID {
		t.Errorf("m.groups = %v, want stale [%s]", u.Groups, f.group.ID.Hex())
	}
}

func TestDelete_NotFoundAfter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, xref.ReadModifyWrite, false)
	other := f.user(t, "other1")
	if err := f.svc.Delete(ctx, self(other), f.group.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("non-owner delete: got %v, want ErrForbidden", err)
	}
	if err := f.svc.Delete(ctx, self(f.owner), f.group.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.group.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete: got %v, want ErrNotFound", err)
	}
	if _, err := f.svc.RequestToJoin(ctx, self(other), f.group.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("request on deleted group: got %v, want ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, mode, false)
			m := f.user(t, "member1")
			_, _ = f.svc.RequestToJoin(ctx, self(m), f.group.ID)

			g, err := f.svc.Update(ctx, self(f.owner), f.group.ID, groupsvc.Input{Name: "Shore Watchers", Description: "<i>Coast</i>"})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if g.Name != "Shore Watchers" || g.Description != "Coast" {
				t.Errorf("got %q/%q, want Shore Watchers/Coast", g.Name, g.Description)
			}
			if count(g.Requests, m.ID) != 1 {
				t.Errorf("requests lost on update: %v", g.Requests)
			}
		})
	}
}

// rendezvous holds the first n arrivals until all n have arrived.
type rendezvous struct {
	mu      sync.Mutex
	n       int
	arrived int
	release chan struct{}
}

func (r *rendezvous) wait() {
	r.mu.Lock()
	r.arrived++
	if r.arrived > r.n {
		r.mu.Unlock()
		return
	}
	if r.arrived == r.n {
		close(r.release)
	}
	r.mu.Unlock()
	select {
	case <-r.release:
	case <-time.After(2 * time.Second):
	}
}

func concurrentRequests(t *testing.T, f fixture, users ...models.User) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make(chan error, len(users))
	for _, u := range users {
		wg.Add(1)
		go func(u models.User) {
			defer wg.Done()
			_, err := f.svc.RequestToJoin(context.Background(), self(u), f.group.ID)
			errs <- err
		}(u)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("request: %v", err)
		}
	}
}

func TestConcurrentRequests_ReadModifyWriteLosesOne(t *testing.T) {
	f := newFixture(t, xref.ReadModifyWrite, false)
	a, b := f.user(t, "alice1"), f.user(t, "bobby1")

	r := &rendezvous{n: 2, release: make(chan struct{})}
	f.groups.SetAfterRead(func(op string, id primitive.ObjectID) {
		if op == "GetByID" && id == f.group.ID {
			r.wait()
		}
	})
	concurrentRequests(t, f, a, b)
	f.groups.SetAfterRead(nil)

	if got := len(f.load(t).Requests); got != 1 {
		t.Errorf("requests = %d, want 1 (one write lost)", got)
	}
}

func TestConcurrentRequests_AtomicKeepsBoth(t *testing.T) {
	f := newFixture(t, xref.Atomic, false)
	a, b := f.user(t, "alice1"), f.user(t, "bobby1")

	r := &rendezvous{n: 2, release: make(chan struct{})}
	f.users.SetAfterRead(func(op string, id primitive.ObjectID) {
		if op == "GetByID" && (id == a.ID || id == b.ID) {
			r.wait()
		}
	})
	concurrentRequests(t, f, a, b)
	f.users.SetAfterRead(nil)

	g := f.load(t)
	if count(g.Requests, a.ID) != 1 || count(g.Requests, b.ID) != 1 {
		t.Errorf("requests = %v, want both users", g.Requests)
	}
}
