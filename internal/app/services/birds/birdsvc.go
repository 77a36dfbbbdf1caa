// Package birdsvc manages bird species reference data. Reads are open;
// writes need ADMIN or SUPER.
package birdsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/dalemusser/birdbook/internal/app/enrich"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/system/htmlsanitize"
	"github.com/dalemusser/birdbook/internal/app/system/inputval"
	"github.com/dalemusser/birdbook/internal/app/system/objectstore"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const SearchLimit = 20

// Store is satisfied by birdstore.Store and memstore.Birds.
type Store interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Bird, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Bird, error)
	Create(ctx context.Context, b models.Bird) (models.Bird, error)
	Save(ctx context.Context, b models.Bird) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	List(ctx context.Context) ([]models.Bird, error)
	Search(ctx context.Context, q string, limit int64) ([]models.Bird, error)
}

type Service struct {
	birds  Store
	images *enrich.Images
	files  objectstore.Store
	log    *zap.Logger
}

func New(birds Store, images *enrich.Images, files objectstore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{birds: birds, images: images, files: files, log: log}
}

func (s *Service) List(ctx context.Context) ([]models.Bird, error) {
	bs, err := s.birds.List(ctx)
	if err != nil {
		return nil, err
	}
	s.images.Birds(ctx, bs)
	return bs, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.Bird, error) {
	b, err := s.birds.GetByID(ctx, id)
	if err != nil {
		return models.Bird{}, err
	}
	s.images.Bird(ctx, &b)
	return b, nil
}

// Search matches common or scientific names, case-insensitively.
func (s *Service) Search(ctx context.Context, q string) ([]models.Bird, error) {
	bs, err := s.birds.Search(ctx, strings.TrimSpace(q), SearchLimit)
	if err != nil {
		return nil, err
	}
	s.images.Birds(ctx, bs)
	return bs, nil
}

// Input is a create or partial update. Nil fields are left unchanged on
// update.
type Input struct {
	CommonName     *string
	ScientificName *string
	Location       []float64
	ClearLocation  bool
	Image          *objectstore.Upload
}

func (s *Service) Create(ctx context.Context, actor authz.Actor, in Input) (models.Bird, error) {
	if !actor.IsAdmin() {
		return models.Bird{}, apperr.ErrForbidden
	}
	var b models.Bird
	if in.CommonName == nil {
		return models.Bird{}, inputval.CommonName("")
	}
	if err := apply(&b, in); err != nil {
		return models.Bird{}, err
	}
	if s.files != nil {
		key, err := in.Image.Save(ctx, s.files, "birds")
		if err != nil {
			return models.Bird{}, fmt.Errorf("store image: %w", err)
		}
		b.ImageURL = key
	}
	b, err := s.birds.Create(ctx, b)
	if err != nil {
		return models.Bird{}, err
	}
	s.images.Bird(ctx, &b)
	return b, nil
}

func (s *Service) Update(ctx context.Context, actor authz.Actor, id primitive.ObjectID, in Input) (models.Bird, error) {
	if !actor.IsAdmin() {
		return models.Bird{}, apperr.ErrForbidden
	}
	b, err := s.birds.GetByID(ctx, id)
	if err != nil {
		return models.Bird{}, err
	}
	if err := apply(&b, in); err != nil {
		return models.Bird{}, err
	}
	oldImage := b.ImageURL
	if in.Image != nil && s.files != nil {
		key, err := in.Image.Save(ctx, s.files, "birds")
		if err != nil {
			return models.Bird{}, fmt.Errorf("store image: %w", err)
		}
		b.ImageURL = key
	}
	if err := s.birds.Save(ctx, b); err != nil {
		return models.Bird{}, err
	}
	if b.ImageURL != oldImage {
		s.dropImage(ctx, oldImage)
	}
	s.images.Bird(ctx, &b)
	return b, nil
}

// Delete removes the species. Its image is deleted only when it lives in
// the object store; external URLs are left alone. Posts keep their bird id.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id primitive.ObjectID) error {
	if !actor.IsAdmin() {
		return apperr.ErrForbidden
	}
	b, err := s.birds.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.birds.Delete(ctx, id); err != nil {
		return err
	}
	s.dropImage(ctx, b.ImageURL)
	return nil
}

func (s *Service) dropImage(ctx context.Context, ref string) {
	if err := objectstore.DeleteIfManaged(ctx, s.files, ref); err != nil {
		s.log.Warn("image not deleted", zap.String("key", ref), zap.Error(err))
	}
	s.images.Forget(ctx, ref)
}

func apply(b *models.Bird, in Input) error {
	if in.CommonName != nil {
		name := strings.TrimSpace(htmlsanitize.StripTags(*in.CommonName))
		if err := inputval.CommonName(name); err != nil {
			return err
		}
		b.CommonName = name
	}
	if in.ScientificName != nil {
		b.ScientificName = strings.TrimSpace(htmlsanitize.StripTags(*in.ScientificName))
	}
	switch {
	case in.ClearLocation:
		b.Location = nil
	case in.Location != nil:
		if err := inputval.Coordinates(in.Location); err != nil {
			return err
		}
		b.Location = in.Location
	}
	return nil
}
