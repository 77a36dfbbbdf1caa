// Package groupsvc owns birding groups and their membership state machine.
//
// For a given group a user is a non-member, has a pending request, or is a
// member, never two at once:
//
//	NonMember --request--> RequestPending --approve--> Member
//	RequestPending --deny--> NonMember
//	Member --remove/leave--> NonMember
package groupsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/dalemusser/birdbook/internal/app/enrich"
	"github.com/dalemusser/birdbook/internal/app/policy/grouppolicy"
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

const SearchLimit = 20

// Store is satisfied by groupstore.Store and memstore.Groups.
type Store interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Group, error)
	Create(ctx context.Context, g models.Group) (models.Group, error)
	Save(ctx context.Context, g models.Group) error
	UpdateInfo(ctx context.Context, id primitive.ObjectID, name, desc, image string) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	List(ctx context.Context) ([]models.Group, error)
	Search(ctx context.Context, q string, limit int64) ([]models.Group, error)
	ByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error)

	AddRequest(ctx context.Context, id primitive.ObjectID, u models.PostUser) (bool, error)
	ApproveRequest(ctx context.Context, id primitive.ObjectID, u models.PostUser) (bool, error)
	DenyRequest(ctx context.Context, id, userID primitive.ObjectID) (bool, error)
	RemoveMember(ctx context.Context, id, userID primitive.ObjectID) (bool, error)
}

type Deps struct {
	Groups     Store
	Authors    xref.Snapshotter
	Propagator xref.Propagator
	Images     *enrich.Images
	Files      objectstore.Store
	Mode       xref.Mode
	Log        *zap.Logger

	// PropagateOnApprove appends the group to the approved user's groups
	// array. Off by default: approval only touches the group.
	PropagateOnApprove bool
}

type Service struct {
	groups    Store
	authors   xref.Snapshotter
	prop      xref.Notifier
	images    *enrich.Images
	files     objectstore.Store
	mode      xref.Mode
	log       *zap.Logger
	onApprove bool
}

func New(d Deps) *Service {
	if d.Mode == "" {
		d.Mode = xref.ReadModifyWrite
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Service{
		groups:    d.Groups,
		authors:   d.Authors,
		prop:      xref.BestEffort(d.Propagator, d.Log),
		images:    d.Images,
		files:     d.Files,
		mode:      d.Mode,
		log:       d.Log,
		onApprove: d.PropagateOnApprove,
	}
}

// Input carries the editable group fields.
type Input struct {
	Name        string
	Description string
	Image       *objectstore.Upload
}

// Create records the caller as owner and then appends the group id to the
// owner's groups array. The owner is not added to Members.
func (s *Service) Create(ctx context.Context, actor authz.Actor, in Input) (models.Group, error) {
	if actor.Anonymous() {
		return models.Group{}, apperr.ErrUnauthorized
	}
	name, desc, err := cleanInfo(in.Name, in.Description)
	if err != nil {
		return models.Group{}, err
	}
	owner, err := s.authors.Snapshot(ctx, actor.ID)
	if err != nil {
		return models.Group{}, fmt.Errorf("resolve owner: %w", err)
	}

	g := models.Group{Name: name, Description: desc, Owner: owner}
	if s.files != nil {
		key, err := in.Image.Save(ctx, s.files, "groups")
		if err != nil {
			return models.Group{}, fmt.Errorf("store image: %w", err)
		}
		g.Image = key
	}

	g, err = s.groups.Create(ctx, g)
	if err != nil {
		return models.Group{}, err
	}
	s.prop.AddGroup(ctx, owner.UserID, g.ID)

	s.images.Group(ctx, &g)
	return g, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return models.Group{}, err
	}
	s.images.Group(ctx, &g)
	return g, nil
}

func (s *Service) List(ctx context.Context) ([]models.Group, error) {
	gs, err := s.groups.List(ctx)
	if err != nil {
		return nil, err
	}
	s.images.Groups(ctx, gs)
	return gs, nil
}

func (s *Service) Search(ctx context.Context, q string) ([]models.Group, error) {
	gs, err := s.groups.Search(ctx, strings.TrimSpace(q), SearchLimit)
	if err != nil {
		return nil, err
	}
	s.images.Groups(ctx, gs)
	return gs, nil
}

// ByMember returns groups where userID is in Members.
func (s *Service) ByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	gs, err := s.groups.ByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.images.Groups(ctx, gs)
	return gs, nil
}

func (s *Service) Members(ctx context.Context, id primitive.ObjectID) ([]models.PostUser, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.Members, nil
}

// Requests lists pending join requests. Managers only.
func (s *Service) Requests(ctx context.Context, actor authz.Actor, id primitive.ObjectID) ([]models.PostUser, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !grouppolicy.CanSeeRequests(actor, g) {
		return nil, apperr.ErrForbidden
	}
	return g.Requests, nil
}

// Update replaces name and description, and the image when one is given.
// Membership lists are left alone.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id primitive.ObjectID, in Input) (models.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return models.Group{}, err
	}
	if !grouppolicy.CanManage(actor, g) {
		return models.Group{}, apperr.ErrForbidden
	}
	name, desc, err := cleanInfo(in.Name, in.Description)
	if err != nil {
		return models.Group{}, err
	}

	oldImage := g.Image
	g.Name, g.Description = name, desc
	if in.Image != nil && s.files != nil {
		key, err := in.Image.Save(ctx, s.files, "groups")
		if err != nil {
			return models.Group{}, fmt.Errorf("store image: %w", err)
		}
		g.Image = key
	}

	if s.mode == xref.Atomic {
		err = s.groups.UpdateInfo(ctx, id, g.Name, g.Description, g.Image)
	} else {
		err = s.groups.Save(ctx, g)
	}
	if err != nil {
		return models.Group{}, err
	}
	if g.Image != oldImage {
		s.dropImage(ctx, oldImage)
	}
	return s.Get(ctx, id)
}

// Delete removes the group. Members' groups arrays keep the id.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id primitive.ObjectID) error {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !grouppolicy.CanManage(actor, g) {
		return apperr.ErrForbidden
	}
	if _, err := s.groups.Delete(ctx, id); err != nil {
		return err
	}
	s.dropImage(ctx, g.Image)
	return nil
}

func (s *Service) dropImage(ctx context.Context, ref string) {
	if err := objectstore.DeleteIfManaged(ctx, s.files, ref); err != nil {
		s.log.Warn("image not deleted", zap.String("key", ref), zap.Error(err))
	}
	s.images.Forget(ctx, ref)
}

func cleanInfo(name, desc string) (string, string, error) {
	name = strings.TrimSpace(htmlsanitize.StripTags(name))
	desc = strings.TrimSpace(htmlsanitize.StripTags(desc))
	if err := inputval.GroupName(name); err != nil {
		return "", "", err
	}
	if err := inputval.Description(desc); err != nil {
		return "", "", err
	}
	return name, desc, nil
}
