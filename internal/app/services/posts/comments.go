package postsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/system/htmlsanitize"
	"github.com/dalemusser/birdbook/internal/app/system/inputval"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comments are embedded in the post and addressed by the pair
// (author id, timestamp). Only the comment's author can edit or delete it,
// and a pair that matches nothing is reported the same way as a pair that
// belongs to someone else.

// AddComment appends a comment by the caller and returns the updated post.
func (s *Service) AddComment(ctx context.Context, actor authz.Actor, postID primitive.ObjectID, textBody string) (models.Post, error) {
	if actor.Anonymous() {
		return models.Post{}, apperr.ErrUnauthorized
	}
	textBody = htmlsanitize.StripTags(textBody)
	if err := inputval.Comment(textBody); err != nil {
		return models.Post{}, err
	}
	author, err := s.authors.Snapshot(ctx, actor.ID)
	if err != nil {
		return models.Post{}, fmt.Errorf("resolve commenter: %w", err)
	}
	c := models.Comment{
		ID:        primitive.NewObjectID(),
		User:      author,
		TextBody:  textBody,
		Timestamp: models.Now(),
	}

	if s.mode == xref.Atomic {
		return s.afterAtomic(ctx, postID, s.posts.PushComment(ctx, postID, c))
	}
	return s.modify(ctx, postID, func(p *models.Post) {
		p.Comments = append(p.Comments, c)
	})
}

// UpdateComment replaces the text of the caller's comment at ts.
func (s *Service) UpdateComment(ctx context.Context, actor authz.Actor, postID primitive.ObjectID, ts time.Time, textBody string) (models.Post, error) {
	if actor.Anonymous() {
		return models.Post{}, apperr.ErrUnauthorized
	}
	textBody = htmlsanitize.StripTags(textBody)
	if err := inputval.Comment(textBody); err != nil {
		return models.Post{}, err
	}

	if s.mode == xref.Atomic {
		ok, err := s.posts.SetCommentText(ctx, postID, actor.ID, ts, textBody)
		return s.afterComment(ctx, postID, ok, err)
	}

	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	matched := false
	for i := range p.Comments {
		if p.Comments[i].Matches(actor.ID, ts) {
			p.Comments[i].TextBody = textBody
			matched = true
			break
		}
	}
	if !matched {
		return models.Post{}, apperr.ErrNotFoundOrUnauthorized
	}
	if err := s.posts.Save(ctx, p); err != nil {
		return models.Post{}, err
	}
	s.present(ctx, &p)
	return p, nil
}

// DeleteComment removes the caller's comment at ts.
func (s *Service) DeleteComment(ctx context.Context, actor authz.Actor, postID primitive.ObjectID, ts time.Time) (models.Post, error) {
	if actor.Anonymous() {
		return models.Post{}, apperr.ErrUnauthorized
	}

	if s.mode == xref.Atomic {
		ok, err := s.posts.PullComments(ctx, postID, actor.ID, ts)
		return s.afterComment(ctx, postID, ok, err)
	}

	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	kept := make([]models.Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		if !c.Matches(actor.ID, ts) {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(p.Comments) {
		return models.Post{}, apperr.ErrNotFoundOrUnauthorized
	}
	p.Comments = kept
	if err := s.posts.Save(ctx, p); err != nil {
		return models.Post{}, err
	}
	s.present(ctx, &p)
	return p, nil
}

// afterComment turns a conditional update result into the post or an error.
// A false result is re-read to tell a missing post from a missing comment.
func (s *Service) afterComment(ctx context.Context, postID primitive.ObjectID, ok bool, err error) (models.Post, error) {
	if err != nil {
		return models.Post{}, err
	}
	p, err := s.Get(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	if !ok {
		return models.Post{}, apperr.ErrNotFoundOrUnauthorized
	}
	return p, nil
}
