// Package usersvc owns user accounts and the back-reference arrays stored
// on them (friends, posts, groups).
package usersvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/birdbook/internal/app/policy/userpolicy"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/system/htmlsanitize"
	"github.com/dalemusser/birdbook/internal/app/system/inputval"
	"github.com/dalemusser/birdbook/internal/app/system/objectstore"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SearchLimit caps every search result list.
const SearchLimit = 20

// Store is satisfied by userstore.Store and memstore.Users.
type Store interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	Save(ctx context.Context, u models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	Search(ctx context.Context, q string, limit int64) ([]models.User, error)

	PushFriend(ctx context.Context, id, friendID primitive.ObjectID) error
	PullFriend(ctx context.Context, id, friendID primitive.ObjectID) error
	PushPost(ctx context.Context, id, postID primitive.ObjectID) error
	PushGroup(ctx context.Context, id, groupID primitive.ObjectID) error
}

// PostReader is what the user service reads from the posts collection.
type PostReader interface {
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error)
	ByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error)
}

// GroupReader is what the user service reads from the groups collection.
type GroupReader interface {
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Group, error)
}

// BirdReader resolves bird details for statistics.
type BirdReader interface {
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Bird, error)
}

// Deps wires a Service.
type Deps struct {
	Users  Store
	Posts  PostReader
	Groups GroupReader
	Birds  BirdReader
	Files  objectstore.Store
	Mode   xref.Mode
	Log    *zap.Logger

	// Now defaults to time.Now; tests pin it for month-bounded statistics.
	Now func() time.Time
}

type Service struct {
	users  Store
	posts  PostReader
	groups GroupReader
	birds  BirdReader
	files  objectstore.Store
	mode   xref.Mode
	log    *zap.Logger
	now    func() time.Time
}

func New(d Deps) *Service {
	if d.Mode == "" {
		d.Mode = xref.ReadModifyWrite
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		users:  d.Users,
		posts:  d.Posts,
		groups: d.Groups,
		birds:  d.Birds,
		files:  d.Files,
		mode:   d.Mode,
		log:    d.Log,
		now:    d.Now,
	}
}

// Mode reports the configured array update mode.
func (s *Service) Mode() xref.Mode { return s.mode }

/* -------------------------------------------------------------------------- */
/* Accounts                                                                    */
/* -------------------------------------------------------------------------- */

// Register creates a BASIC user with empty back-reference arrays.
func (s *Service) Register(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if err := inputval.Username(username); err != nil {
		return models.User{}, err
	}
	if err := inputval.Password(password); err != nil {
		return models.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleBasic,
	})
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID.Hex()), zap.String("username", u.Username))
	return u, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both return ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.User{}, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
		}
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return models.User{}, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.users.GetByID(ctx, id)
}

// Snapshot returns the embedded form of a user, used by the post and
// group services and the /internal endpoint.
func (s *Service) Snapshot(ctx context.Context, id primitive.ObjectID) (models.PostUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.PostUser{}, err
	}
	return u.Snapshot(), nil
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// Search matches usernames containing q, case-insensitively.
func (s *Service) Search(ctx context.Context, q string) ([]models.User, error) {
	return s.users.Search(ctx, strings.TrimSpace(q), SearchLimit)
}

// OnboardInput is the first-run profile form.
type OnboardInput struct {
	FirstName string
	LastName  string
	Location  string
	Photo     *objectstore.Upload
}

// Onboard fills in the caller's profile and marks onboarding complete.
func (s *Service) Onboard(ctx context.Context, actor authz.Actor, in OnboardInput) (models.User, error) {
	if actor.Anonymous() {
		return models.User{}, apperr.ErrUnauthorized
	}
	first := htmlsanitize.StripTags(in.FirstName)
	last := htmlsanitize.StripTags(in.LastName)
	loc := htmlsanitize.StripTags(in.Location)
	if err := validateProfile(first, last, loc); err != nil {
		return models.User{}, err
	}

	u, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return models.User{}, err
	}
	u.FirstName, u.LastName, u.Location = first, last, loc
	u.OnboardingComplete = true
	if err := s.replacePhoto(ctx, &u, in.Photo); err != nil {
		return models.User{}, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// UpdateInput is a partial profile update. Nil fields are left unchanged.
type UpdateInput struct {
	Username  *string
	Password  *string
	FirstName *string
	LastName  *string
	Location  *string
	Photo     *objectstore.Upload
}

// Update edits a profile. Only the user themselves may do this.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id primitive.ObjectID, in UpdateInput) (models.User, error) {
	if !userpolicy.CanEdit(actor, id) {
		return models.User{}, apperr.ErrForbidden
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if err := inputval.Username(name); err != nil {
			return models.User{}, err
		}
		u.Username = name
	}
	if in.Password != nil && *in.Password != "" {
		if err := inputval.Password(*in.Password); err != nil {
			return models.User{}, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	if in.FirstName != nil {
		u.FirstName = htmlsanitize.StripTags(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = htmlsanitize.StripTags(*in.LastName)
	}
	if in.Location != nil {
		u.Location = htmlsanitize.StripTags(*in.Location)
	}
	if err := validateProfile(u.FirstName, u.LastName, u.Location); err != nil {
		return models.User{}, err
	}
	if err := s.replacePhoto(ctx, &u, in.Photo); err != nil {
		return models.User{}, err
	}

	if err := s.users.Save(ctx, u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// ChangeRole sets a user's role. SUPER only.
func (s *Service) ChangeRole(ctx context.Context, actor authz.Actor, id primitive.ObjectID, role string) (models.User, error) {
	if !userpolicy.CanChangeRole(actor) {
		return models.User{}, apperr.ErrForbidden
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if !authz.ValidRole(role) {
		return models.User{}, apperr.Invalid("role", "Invalid role: %s", role)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	u.Role = role
	if err := s.users.Save(ctx, u); err != nil {
		return models.User{}, err
	}
	s.log.Info("user role changed",
		zap.String("user_id", id.Hex()),
		zap.String("role", role),
		zap.String("by", actor.ID.Hex()))
	return u, nil
}

// Delete removes the account. Ids of this user left in other users'
// friends arrays and in group member lists are not cleaned up.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id primitive.ObjectID) error {
	if !userpolicy.CanDelete(actor, id) {
		return apperr.ErrForbidden
	}
	n, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Resolved back-reference lists                                               */
/* -------------------------------------------------------------------------- */

// Friends resolves the user's friends array. Ids of deleted users are skipped.
func (s *Service) Friends(ctx context.Context, id primitive.ObjectID) ([]models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.users.GetByIDs(ctx, u.Friends)
}

// Groups resolves the user's groups array. Deleted groups are skipped.
func (s *Service) Groups(ctx context.Context, id primitive.ObjectID) ([]models.Group, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.groups.GetByIDs(ctx, u.Groups)
}

// Posts resolves the user's posts array. Deleted posts are skipped.
func (s *Service) Posts(ctx context.Context, id primitive.ObjectID) ([]models.Post, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.posts.GetByIDs(ctx, u.Posts)
}

func (s *Service) replacePhoto(ctx context.Context, u *models.User, photo *objectstore.Upload) error {
	if photo == nil || s.files == nil {
		return nil
	}
	key, err := photo.Save(ctx, s.files, "users")
	if err != nil {
		return fmt.Errorf("store profile picture: %w", err)
	}
	old := u.ProfilePic
	u.ProfilePic = key
	if err := objectstore.DeleteIfManaged(ctx, s.files, old); err != nil {
		s.log.Warn("old profile picture not deleted", zap.String("key", old), zap.Error(err))
	}
	return nil
}

func validateProfile(first, last, loc string) error {
	if err := inputval.NamePart("first_name", first); err != nil {
		return err
	}
	if err := inputval.NamePart("last_name", last); err != nil {
		return err
	}
	return inputval.Location(loc)
}
