package enrich

import (
	"context"
	"time"

	"github.com/dalemusser/birdbook/internal/app/system/objectstore"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const presignCachePrefix = "birdbook:presign:"

// Images resolves stored image keys into time-limited URLs. A nil
// *Images leaves every reference unchanged.
type Images struct {
	store objectstore.Store
	ttl   time.Duration
	rdb   *redis.Client
	log   *zap.Logger
}

// NewImages builds a resolver. rdb may be nil, which disables caching.
func NewImages(store objectstore.Store, ttl time.Duration, rdb *redis.Client, log *zap.Logger) *Images {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Images{store: store, ttl: ttl, rdb: rdb, log: log}
}

// Resolve returns a fetchable URL for ref. External references come back
// unchanged, and so does ref itself when signing fails.
func (im *Images) Resolve(ctx context.Context, ref string) string {
	if im == nil || im.store == nil || objectstore.IsExternal(ref) {
		return ref
	}

	cacheKey := presignCachePrefix + ref
	if im.rdb != nil {
		if url, err := im.rdb.Get(ctx, cacheKey).Result(); err == nil && url != "" {
			return url
		} else if err != nil && err != redis.Nil {
			im.log.Debug("presign cache read failed", zap.String("key", ref), zap.Error(err))
		}
	}

	url, err := im.store.PresignGet(ctx, ref, im.ttl)
	if err != nil {
		im.log.Warn("image presign failed", zap.String("key", ref), zap.Error(err))
		return ref
	}

	if im.rdb != nil {
		// Half the lifetime so a cached URL always has time left when served.
		if err := im.rdb.Set(ctx, cacheKey, url, im.ttl/2).Err(); err != nil {
			im.log.Debug("presign cache write failed", zap.String("key", ref), zap.Error(err))
		}
	}
	return url
}

// Forget drops a cached URL, used after the object is deleted.
func (im *Images) Forget(ctx context.Context, ref string) {
	if im == nil || im.rdb == nil || objectstore.IsExternal(ref) {
		return
	}
	_ = im.rdb.Del(ctx, presignCachePrefix+ref).Err()
}

func (im *Images) Post(ctx context.Context, p *models.Post) {
	p.Image = im.Resolve(ctx, p.Image)
	if p.BirdDetails != nil {
		im.Bird(ctx, p.BirdDetails)
	}
}

func (im *Images) Posts(ctx context.Context, posts []models.Post) {
	for i := range posts {
		im.Post(ctx, &posts[i])
	}
}

func (im *Images) Bird(ctx context.Context, b *models.Bird) {
	b.ImageURL = im.Resolve(ctx, b.ImageURL)
}

func (im *Images) Birds(ctx context.Context, birds []models.Bird) {
	for i := range birds {
		im.Bird(ctx, &birds[i])
	}
}

func (im *Images) Group(ctx context.Context, g *models.Group) {
	g.Image = im.Resolve(ctx, g.Image)
}

func (im *Images) Groups(ctx context.Context, groups []models.Group) {
	for i := range groups {
		im.Group(ctx, &groups[i])
	}
}

func (im *Images) User(ctx context.Context, u *models.User) {
	u.ProfilePic = im.Resolve(ctx, u.ProfilePic)
}

func (im *Images) Users(ctx context.Context, users []models.User) {
	for i := range users {
		im.User(ctx, &users[i])
	}
}
