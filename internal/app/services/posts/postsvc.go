// Package postsvc owns sightings (posts) and their likes, flags and
// embedded comments.
//
// Creating a post persists it first and then propagates the new id to the
// author's posts array through a best-effort propagator. Deleting a post
// does not retract the id from that array.
package postsvc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/birdbook/internal/app/enrich"
	"github.com/dalemusser/birdbook/internal/app/policy/postpolicy"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/system/htmlsanitize"
	"github.com/dalemusser/birdbook/internal/app/system/inputval"
	"github.com/dalemusser/birdbook/internal/app/system/objectstore"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SearchLimit caps search results.
const SearchLimit = 20

// Store is satisfied by poststore.Store and memstore.Posts.
type Store interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Post, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error)
	Create(ctx context.Context, p models.Post) (models.Post, error)
	Save(ctx context.Context, p models.Post) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	List(ctx context.Context) ([]models.Post, error)
	ByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error)
	ByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Post, error)
	ByTags(ctx context.Context, tags map[string]string) ([]models.Post, error)
	Search(ctx context.Context, q string, limit int64) ([]models.Post, error)

	AddLike(ctx context.Context, id, userID primitive.ObjectID) error
	RemoveLike(ctx context.Context, id, userID primitive.ObjectID) error
	PushComment(ctx context.Context, id primitive.ObjectID, c models.Comment) error
	SetCommentText(ctx context.Context, id, userID primitive.ObjectID, ts time.Time, textBody string) (bool, error)
	PullComments(ctx context.Context, id, userID primitive.ObjectID, ts time.Time) (bool, error)
	UpdateContent(ctx context.Context, p models.Post) error
	SetFlagged(ctx context.Context, id primitive.ObjectID, v bool) error
	SetHelp(ctx context.Context, id primitive.ObjectID, v bool) error
}

// UserReader is the read access the feed and likers lists need.
type UserReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

type Deps struct {
	Posts      Store
	Users      UserReader
	Authors    xref.Snapshotter
	Propagator xref.Propagator
	Birds      enrich.BirdLookup
	Images     *enrich.Images
	Files      objectstore.Store
	Mode       xref.Mode
	Log        *zap.Logger
}

type Service struct {
	posts   Store
	users   UserReader
	authors xref.Snapshotter
	prop    xref.Notifier
	birds   enrich.BirdLookup
	images  *enrich.Images
	files   objectstore.Store
	mode    xref.Mode
	log     *zap.Logger
}

// New wraps d.Propagator with xref.BestEffort; propagation failures never
// reach callers of this service.
func New(d Deps) *Service {
	if d.Mode == "" {
		d.Mode = xref.ReadModifyWrite
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Service{
		posts:   d.Posts,
		users:   d.Users,
		authors: d.Authors,
		prop:    xref.BestEffort(d.Propagator, d.Log),
		birds:   d.Birds,
		images:  d.Images,
		files:   d.Files,
		mode:    d.Mode,
		log:     d.Log,
	}
}

/* -------------------------------------------------------------------------- */
/* Create / read / update / delete                                             */
/* -------------------------------------------------------------------------- */

// CreateInput is a new sighting.
type CreateInput struct {
	Header   string
	TextBody string
	Bird     *primitive.ObjectID
	Group    *primitive.ObjectID
	Tags     map[string]string
	Image    *objectstore.Upload
}

// Create resolves the caller's snapshot, persists the post and then
// appends its id to the caller's posts array. An unknown author aborts
// before anything is written. A failed append is logged and the post is
// still returned.
func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateInput) (models.Post, error) {
	if actor.Anonymous() {
		return models.Post{}, apperr.ErrUnauthorized
	}
	header := htmlsanitize.StripTags(in.Header)
	body := htmlsanitize.StripTags(in.TextBody)
	if err := inputval.Header(header); err != nil {
		return models.Post{}, err
	}
	if err := inputval.Body(body); err != nil {
		return models.Post{}, err
	}
	if err := validateTags(in.Tags); err != nil {
		return models.Post{}, err
	}

	author, err := s.authors.Snapshot(ctx, actor.ID)
	if err != nil {
		return models.Post{}, fmt.Errorf("resolve author: %w", err)
	}

	p := models.Post{
		User:     author,
		Header:   header,
		TextBody: body,
		Bird:     in.Bird,
		Group:    in.Group,
		Tags:     in.Tags,
	}
	if s.files != nil {
		key, err := in.Image.Save(ctx, s.files, "posts")
		if err != nil {
			return models.Post{}, fmt.Errorf("store image: %w", err)
		}
		p.Image = key
	}

	p, err = s.posts.Create(ctx, p)
	if err != nil {
		return models.Post{}, err
	}

	s.prop.AddPost(ctx, author.UserID, p.ID)

	s.present(ctx, &p)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	s.present(ctx, &p)
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]models.Post, error) {
	return s.presentAll(ctx)(s.posts.List(ctx))
}

func (s *Service) ByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	return s.presentAll(ctx)(s.posts.ByUser(ctx, userID))
}

func (s *Service) ByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Post, error) {
	return s.presentAll(ctx)(s.posts.ByGroup(ctx, groupID))
}

// ByTags returns posts carrying every pair in tags.
func (s *Service) ByTags(ctx context.Context, tags map[string]string) ([]models.Post, error) {
	if err := validateTags(tags); err != nil {
		return nil, err
	}
	return s.presentAll(ctx)(s.posts.ByTags(ctx, tags))
}

func (s *Service) Search(ctx context.Context, q string) ([]models.Post, error) {
	return s.presentAll(ctx)(s.posts.Search(ctx, strings.TrimSpace(q), SearchLimit))
}

// UpdateInput is a partial edit. Nil fields are left unchanged; Clear*
// removes the optional reference.
type UpdateInput struct {
	Header     *string
	TextBody   *string
	Bird       *primitive.ObjectID
	ClearBird  bool
	Group      *primitive.ObjectID
	ClearGroup bool
	Tags       map[string]string
	Image      *objectstore.Upload
}

// Update edits the author's content fields. Likes, comments and flags are
// not touched.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id primitive.ObjectID, in UpdateInput) (models.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	if !postpolicy.CanEdit(actor, p) {
		return models.Post{}, apperr.ErrForbidden
	}

	if in.Header != nil {
		p.Header = htmlsanitize.StripTags(*in.Header)
		if err := inputval.Header(p.Header); err != nil {
			return models.Post{}, err
		}
	}
	if in.TextBody != nil {
		p.TextBody = htmlsanitize.StripTags(*in.TextBody)
		if err := inputval.Body(p.TextBody); err != nil {
			return models.Post{}, err
		}
	}
	switch {
	case in.ClearBird:
		p.Bird = nil
	case in.Bird != nil:
		p.Bird = in.Bird
	}
	switch {
	case in.ClearGroup:
		p.Group = nil
	case in.Group != nil:
		p.Group = in.Group
	}
	if in.Tags != nil {
		if err := validateTags(in.Tags); err != nil {
			return models.Post{}, err
		}
		p.Tags = in.Tags
	}

	oldImage := p.Image
	if in.Image != nil && s.files != nil {
		key, err := in.Image.Save(ctx, s.files, "posts")
		if err != nil {
			return models.Post{}, fmt.Errorf("store image: %w", err)
		}
		p.Image = key
	}

	if s.mode == xref.Atomic {
		err = s.posts.UpdateContent(ctx, p)
	} else {
		err = s.posts.Save(ctx, p)
	}
	if err != nil {
		return models.Post{}, err
	}
	if p.Image != oldImage {
		s.dropImage(ctx, oldImage)
	}
	return s.Get(ctx, id)
}

// Delete removes the post and its stored image. The id stays in the
// author's posts array.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id primitive.ObjectID) error {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !postpolicy.CanDelete(actor, p) {
		return apperr.ErrForbidden
	}
	if _, err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	s.dropImage(ctx, p.Image)
	return nil
}

/* -------------------------------------------------------------------------- */
/* Likes, flags, help                                                          */
/* -------------------------------------------------------------------------- */

// Like adds userID to the post's likes. Liking twice is a no-op.
func (s *Service) Like(ctx context.Context, actor authz.Actor, postID, userID primitive.ObjectID) (models.Post, error) {
	if !postpolicy.CanLikeAs(actor, userID) {
		return models.Post{}, apperr.ErrForbidden
	}
	if s.mode == xref.Atomic {
		return s.afterAtomic(ctx, postID, s.posts.AddLike(ctx, postID, userID))
	}
	return s.modify(ctx, postID, func(p *models.Post) {
		if !models.ContainsID(p.Likes, userID) {
			p.Likes = append(p.Likes, userID)
		}
	})
}

// Unlike removes userID from the post's likes. Unliking a post the user
// never liked is a no-op.
func (s *Service) Unlike(ctx context.Context, actor authz.Actor, postID, userID primitive.ObjectID) (models.Post, error) {
	if !postpolicy.CanLikeAs(actor, userID) {
		return models.Post{}, apperr.ErrForbidden
	}
	if s.mode == xref.Atomic {
		return s.afterAtomic(ctx, postID, s.posts.RemoveLike(ctx, postID, userID))
	}
	return s.modify(ctx, postID, func(p *models.Post) {
		p.Likes = models.WithoutID(p.Likes, userID)
	})
}

// SetFlagged sets or clears the moderation flag. ADMIN/SUPER only.
func (s *Service) SetFlagged(ctx context.Context, actor authz.Actor, postID primitive.ObjectID, v bool) (models.Post, error) {
	if !postpolicy.CanFlag(actor) {
		return models.Post{}, apperr.ErrForbidden
	}
	if s.mode == xref.Atomic {
		return s.afterAtomic(ctx, postID, s.posts.SetFlagged(ctx, postID, v))
	}
	return s.modify(ctx, postID, func(p *models.Post) { p.Flagged = v })
}

// SetHelp sets or clears the identification-help marker. The author or
// ADMIN/SUPER.
func (s *Service) SetHelp(ctx context.Context, actor authz.Actor, postID primitive.ObjectID, v bool) (models.Post, error) {
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	if !postpolicy.CanMarkHelp(actor, p) {
		return models.Post{}, apperr.ErrForbidden
	}
	if s.mode == xref.Atomic {
		return s.afterAtomic(ctx, postID, s.posts.SetHelp(ctx, postID, v))
	}
	p.Help = v
	if err := s.posts.Save(ctx, p); err != nil {
		return models.Post{}, err
	}
	s.present(ctx, &p)
	return p, nil
}

// Likers resolves the likes array into snapshots. Deleted users are skipped.
func (s *Service) Likers(ctx context.Context, postID primitive.ObjectID) ([]models.PostUser, error) {
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.GetByIDs(ctx, p.Likes)
	if err != nil {
		return nil, err
	}
	out := make([]models.PostUser, 0, len(users))
	for _, u := range users {
		snap := u.Snapshot()
		snap.ProfilePic = s.images.Resolve(ctx, snap.ProfilePic)
		out = append(out, snap)
	}
	return out, nil
}

// FriendsFeed returns the posts listed in the posts arrays of userID's
// friends. Ids of posts that were deleted are skipped.
func (s *Service) FriendsFeed(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(u.Friends) == 0 {
		return []models.Post{}, nil
	}
	friends, err := s.users.GetByIDs(ctx, u.Friends)
	if err != nil {
		return nil, err
	}
	var ids []primitive.ObjectID
	for _, f := range friends {
		ids = append(ids, f.Posts...)
	}
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	return s.presentAll(ctx)(s.posts.GetByIDs(ctx, ids))
}

/* -------------------------------------------------------------------------- */
/* helpers                                                                     */
/* -------------------------------------------------------------------------- */

// modify is the read-modify-write path.
func (s *Service) modify(ctx context.Context, id primitive.ObjectID, f func(*models.Post)) (models.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	f(&p)
	if err := s.posts.Save(ctx, p); err != nil {
		return models.Post{}, err
	}
	s.present(ctx, &p)
	return p, nil
}

func (s *Service) afterAtomic(ctx context.Context, id primitive.ObjectID, err error) (models.Post, error) {
	if err != nil {
		return models.Post{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) present(ctx context.Context, p *models.Post) {
	if s.birds != nil {
		one := []models.Post{*p}
		if err := enrich.Birds(ctx, s.birds, one); err != nil {
			s.log.Warn("bird join failed", zap.String("post_id", p.ID.Hex()), zap.Error(err))
		}
		*p = one[0]
	}
	s.images.Post(ctx, p)
}

func (s *Service) presentAll(ctx context.Context) func([]models.Post, error) ([]models.Post, error) {
	return func(posts []models.Post, err error) ([]models.Post, error) {
		if err != nil {
			return nil, err
		}
		if s.birds != nil {
			if err := enrich.Birds(ctx, s.birds, posts); err != nil {
				s.log.Warn("bird join failed", zap.Error(err))
			}
		}
		s.images.Posts(ctx, posts)
		return posts, nil
	}
}

func (s *Service) dropImage(ctx context.Context, ref string) {
	if err := objectstore.DeleteIfManaged(ctx, s.files, ref); err != nil {
		s.log.Warn("image not deleted", zap.String("key", ref), zap.Error(err))
	}
	s.images.Forget(ctx, ref)
}

func validateTags(tags map[string]string) error {
	for k := range tags {
		if k == "" || strings.ContainsAny(k, ".$") {
			return apperr.Invalid("tags", "tag key %q is not allowed", k)
		}
	}
	return nil
}
