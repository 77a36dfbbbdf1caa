package usersvc

import (
	"context"
	"fmt"

	"github.com/dalemusser/birdbook/internal/app/policy/userpolicy"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The membership ledger owns User.friends, User.posts and User.groups.
//
// In ReadModifyWrite mode each call loads the whole user, edits the array
// and saves the document back; two concurrent calls on the same user can
// lose one update. In Atomic mode the store's array operators are used
// and concurrent calls cannot overwrite each other. Neither mode checks
// for duplicates on append.

// AddFriend appends friendID to userID's friends. Both users must exist.
// Friendship is one-directional and re-adding a friend appends a
// duplicate id.
func (s *Service) AddFriend(ctx context.Context, actor authz.Actor, userID, friendID primitive.ObjectID) error {
	if !userpolicy.CanManageFriends(actor, userID) {
		return apperr.ErrForbidden
	}
	return s.addFriend(ctx, userID, friendID)
}

// RemoveFriend filters friendID out of userID's friends. Removing an id
// that is not present is not an error.
func (s *Service) RemoveFriend(ctx context.Context, actor authz.Actor, userID, friendID primitive.ObjectID) error {
	if !userpolicy.CanManageFriends(actor, userID) {
		return apperr.ErrForbidden
	}
	return s.removeFriend(ctx, userID, friendID)
}

// AddPost appends postID to userID's posts. It is the target of post
// creation propagation and has no authorization check of its own.
func (s *Service) AddPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	if s.mode == xref.Atomic {
		return s.users.PushPost(ctx, userID, postID)
	}
	return s.modify(ctx, userID, func(u *models.User) {
		u.Posts = append(u.Posts, postID)
	})
}

// AddGroup appends groupID to userID's groups.
func (s *Service) AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) error {
	if s.mode == xref.Atomic {
		return s.users.PushGroup(ctx, userID, groupID)
	}
	return s.modify(ctx, userID, func(u *models.User) {
		u.Groups = append(u.Groups, groupID)
	})
}

func (s *Service) addFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	if s.mode == xref.Atomic {
		if err := s.mustExist(ctx, userID); err != nil {
			return err
		}
		if err := s.mustExist(ctx, friendID); err != nil {
			return err
		}
		return s.users.PushFriend(ctx, userID, friendID)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.mustExist(ctx, friendID); err != nil {
		return err
	}
	u.Friends = append(u.Friends, friendID)
	return s.users.Save(ctx, u)
}

func (s *Service) removeFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	if s.mode == xref.Atomic {
		return s.users.PullFriend(ctx, userID, friendID)
	}
	return s.modify(ctx, userID, func(u *models.User) {
		u.Friends = models.WithoutID(u.Friends, friendID)
	})
}

// modify is the read-modify-write path.
func (s *Service) modify(ctx context.Context, id primitive.ObjectID, f func(*models.User)) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	f(&u)
	return s.users.Save(ctx, u)
}

func (s *Service) mustExist(ctx context.Context, id primitive.ObjectID) error {
	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	return nil
}
