package groupsvc

import (
	"context"
	"fmt"

	"github.com/dalemusser/birdbook/internal/app/policy/grouppolicy"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Each transition checks its precondition before touching the group and
// a failed check leaves the group unchanged.
//
// ReadModifyWrite loads the group, checks, edits and saves the whole
// document. Two concurrent transitions on one group can lose an update.
// Atomic uses conditional updates whose filter carries the precondition;
// when nothing matched the group is re-read to report why.

// RequestToJoin adds the caller to Requests.
func (s *Service) RequestToJoin(ctx context.Context, actor authz.Actor, groupID primitive.ObjectID) (models.Group, error) {
	if actor.Anonymous() {
		return models.Group{}, apperr.ErrUnauthorized
	}
	me, err := s.authors.Snapshot(ctx, actor.ID)
	if err != nil {
		return models.Group{}, fmt.Errorf("resolve requester: %w", err)
	}

	if s.mode == xref.Atomic {
		ok, err := s.groups.AddRequest(ctx, groupID, me)
		if err != nil {
			return models.Group{}, err
		}
		if !ok {
			return models.Group{}, s.why(ctx, groupID, func(g models.Group) error {
				if err := requestBlocked(g, me.UserID); err != nil {
					return err
				}
				// blocked at update time, cleared since
				return apperr.ErrAlreadyRequested
			})
		}
		return s.Get(ctx, groupID)
	}

	return s.modify(ctx, groupID, func(g *models.Group) error {
		if err := requestBlocked(*g, me.UserID); err != nil {
			return err
		}
		g.Requests = append(g.Requests, me)
		return nil
	})
}

// Approve moves userID from Requests to Members. Managers only.
func (s *Service) Approve(ctx context.Context, actor authz.Actor, groupID, userID primitive.ObjectID) (models.Group, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !grouppolicy.CanManage(actor, g) {
		return models.Group{}, apperr.ErrForbidden
	}
	req, ok := findUser(g.Requests, userID)
	if !ok {
		return models.Group{}, apperr.ErrNoRequestFound
	}

	var out models.Group
	if s.mode == xref.Atomic {
		ok, err := s.groups.ApproveRequest(ctx, groupID, req)
		if err != nil {
			return models.Group{}, err
		}
		if !ok {
			return models.Group{}, s.why(ctx, groupID, func(models.Group) error { return apperr.ErrNoRequestFound })
		}
		out, err = s.Get(ctx, groupID)
		if err != nil {
			return models.Group{}, err
		}
	} else {
		g.Requests = models.WithoutUser(g.Requests, userID)
		g.Members = append(g.Members, req)
		if err := s.groups.Save(ctx, g); err != nil {
			return models.Group{}, err
		}
		s.images.Group(ctx, &g)
		out = g
	}

	if s.onApprove {
		s.prop.AddGroup(ctx, userID, groupID)
	}
	return out, nil
}

// Deny drops userID from Requests. Managers only.
func (s *Service) Deny(ctx context.Context, actor authz.Actor, groupID, userID primitive.ObjectID) (models.Group, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !grouppolicy.CanManage(actor, g) {
		return models.Group{}, apperr.ErrForbidden
	}

	if s.mode == xref.Atomic {
		ok, err := s.groups.DenyRequest(ctx, groupID, userID)
		if err != nil {
			return models.Group{}, err
		}
		if !ok {
			return models.Group{}, s.why(ctx, groupID, func(models.Group) error { return apperr.ErrNoRequestFound })
		}
		return s.Get(ctx, groupID)
	}

	if !g.HasRequest(userID) {
		return models.Group{}, apperr.ErrNoRequestFound
	}
	g.Requests = models.WithoutUser(g.Requests, userID)
	if err := s.groups.Save(ctx, g); err != nil {
		return models.Group{}, err
	}
	s.images.Group(ctx, &g)
	return g, nil
}

// RemoveMember drops userID from Members. Managers may remove anyone and
// a member may remove themselves. The user's groups array keeps the id.
func (s *Service) RemoveMember(ctx context.Context, actor authz.Actor, groupID, userID primitive.ObjectID) (models.Group, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !grouppolicy.CanRemoveMember(actor, g, userID) {
		return models.Group{}, apperr.ErrForbidden
	}

	if s.mode == xref.Atomic {
		ok, err := s.groups.RemoveMember(ctx, groupID, userID)
		if err != nil {
			return models.Group{}, err
		}
		if !ok {
			return models.Group{}, s.why(ctx, groupID, func(models.Group) error { return apperr.ErrNotAMember })
		}
		return s.Get(ctx, groupID)
	}

	if !g.HasMember(userID) {
		return models.Group{}, apperr.ErrNotAMember
	}
	g.Members = models.WithoutUser(g.Members, userID)
	if err := s.groups.Save(ctx, g); err != nil {
		return models.Group{}, err
	}
	s.images.Group(ctx, &g)
	return g, nil
}

// modify is the read-modify-write path. f returning an error aborts
// without saving.
func (s *Service) modify(ctx context.Context, id primitive.ObjectID, f func(*models.Group) error) (models.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return models.Group{}, err
	}
	if err := f(&g); err != nil {
		return models.Group{}, err
	}
	if err := s.groups.Save(ctx, g); err != nil {
		return models.Group{}, err
	}
	s.images.Group(ctx, &g)
	return g, nil
}

// why re-reads a group after a conditional update matched nothing.
func (s *Service) why(ctx context.Context, id primitive.ObjectID, classify func(models.Group) error) error {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return classify(g)
}

func requestBlocked(g models.Group, userID primitive.ObjectID) error {
	switch {
	case g.HasRequest(userID):
		return apperr.ErrAlreadyRequested
	case g.HasMember(userID):
		return apperr.ErrAlreadyMember
	}
	return nil
}

func findUser(list []models.PostUser, userID primitive.ObjectID) (models.PostUser, bool) {
	for _, u := range list {
		if u.UserID == userID {
			return u, true
		}
	}
	return models.PostUser{}, false
}
