// Package searchsvc answers free-text searches across birds, users, posts
// and groups. Each list is capped at Limit.
package searchsvc

import (
	"context"
	"strings"

	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

const Limit = 20

type BirdSearcher interface {
	Search(ctx context.Context, q string) ([]models.Bird, error)
}

type UserSearcher interface {
	Search(ctx context.Context, q string) ([]models.User, error)
	Friends(ctx context.Context, id primitive.ObjectID) ([]models.User, error)
}

type PostSearcher interface {
	Search(ctx context.Context, q string) ([]models.Post, error)
}

type GroupSearcher interface {
	Search(ctx context.Context, q string) ([]models.Group, error)
	ByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error)
}

// Results is the combined answer for GET /search.
type Results struct {
	Birds  []models.Bird  `json:"birds"`
	Users  []models.User  `json:"users"`
	Posts  []models.Post  `json:"posts"`
	Groups []models.Group `json:"groups"`
}

type Service struct {
	birds  BirdSearcher
	users  UserSearcher
	posts  PostSearcher
	groups GroupSearcher
}

func New(birds BirdSearcher, users UserSearcher, posts PostSearcher, groups GroupSearcher) *Service {
	return &Service{birds: birds, users: users, posts: posts, groups: groups}
}

// All runs the four searches concurrently. Any failure fails the whole
// search.
func (s *Service) All(ctx context.Context, q string) (Results, error) {
	var r Results
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { r.Birds, err = s.Birds(ctx, q); return })
	g.Go(func() (err error) { r.Users, err = s.Users(ctx, q); return })
	g.Go(func() (err error) { r.Posts, err = s.Posts(ctx, q); return })
	g.Go(func() (err error) { r.Groups, err = s.Groups(ctx, q); return })
	if err := g.Wait(); err != nil {
		return Results{}, err
	}
	return r, nil
}

func (s *Service) Birds(ctx context.Context, q string) ([]models.Bird, error) {
	out, err := s.birds.Search(ctx, q)
	return capped(out, err)
}

func (s *Service) Users(ctx context.Context, q string) ([]models.User, error) {
	out, err := s.users.Search(ctx, q)
	return capped(out, err)
}

func (s *Service) Posts(ctx context.Context, q string) ([]models.Post, error) {
	out, err := s.posts.Search(ctx, q)
	return capped(out, err)
}

func (s *Service) Groups(ctx context.Context, q string) ([]models.Group, error) {
	out, err := s.groups.Search(ctx, q)
	return capped(out, err)
}

// Friends matches usernames among userID's friends.
func (s *Service) Friends(ctx context.Context, userID primitive.ObjectID, q string) ([]models.User, error) {
	friends, err := s.users.Friends(ctx, userID)
	if err != nil {
		return nil, err
	}
	return capped(filter(friends, q, func(u models.User) string { return u.Username }), nil)
}

// MyGroups matches names of groups userID is a member of.
func (s *Service) MyGroups(ctx context.Context, userID primitive.ObjectID, q string) ([]models.Group, error) {
	groups, err := s.groups.ByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	return capped(filter(groups, q, func(g models.Group) string { return g.Name }), nil)
}

func filter[T any](in []T, q string, field func(T) string) []T {
	needle := text.Fold(strings.TrimSpace(q))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if strings.Contains(text.Fold(field(v)), needle) {
			out = append(out, v)
		}
	}
	return out
}

func capped[T any](in []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if in == nil {
		return []T{}, nil
	}
	if len(in) > Limit {
		in = in[:Limit]
	}
	return in, nil
}
