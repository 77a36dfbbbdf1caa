package enrich_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/dalemusser/birdbook/internal/app/enrich"
	"github.com/dalemusser/birdbook/internal/app/store/memstore"
	"github.com/dalemusser/birdbook/internal/app/system/objectstore"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeStore struct {
	presigns int
	fail     bool
}

func (f *fakeStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	return key, nil
}
func (f *fakeStore) Delete(ctx context.Context, key string) error { return nil }
func (f *fakeStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.presigns++
	if f.fail {
		return "", errors.New("signing unavailable")
	}
	return "https://signed.example/" + key, nil
}
func (f *fakeStore) Managed(ref string) bool { return !objectstore.IsExternal(ref) }

func TestBirds_AttachesDetails(t *testing.T) {
	ctx := context.Background()
	birds := memstore.NewBirds()
	heron, _ := birds.Create(ctx, models.Bird{CommonName: "Great Blue Heron", ScientificName: "Ardea herodias"})
	missing := primitive.NewObjectID()

	posts := []models.Post{
		{Header: "with bird", Bird: &heron.ID},
		{Header: "no bird"},
		{Header: "deleted bird", Bird: &missing},
	}
	if err := enrich.Birds(ctx, birds, posts); err != nil {
		t.Fatalf("Birds: %v", err)
	}
	if posts[0].BirdDetails == nil || posts[0].BirdDetails.CommonName != "Great Blue Heron" {
		t.Errorf("post 0 details = %+v, want heron", posts[0].BirdDetails)
	}
	if posts[1].BirdDetails != nil {
		t.Errorf("post 1 details = %+v, want nil", posts[1].BirdDetails)
	}
	if posts[2].BirdDetails != nil {
		t.Errorf("post 2 details = %+v, want nil", posts[2].BirdDetails)
	}
}

func TestImages_Resolve(t *testing.T) {
	ctx := context.Background()
	st := &fakeStore{}
	im := enrich.NewImages(st, time.Hour, nil, zap.NewNop())

	tests := []struct {
		ref  string
		want string
	}{
		{"", ""},
		{"https://cdn.example/owl.png", "https://cdn.example/owl.png"},
		{"http://cdn.example/owl.png", "http://cdn.example/owl.png"},
		{"/files/birds/owl.png", "/files/birds/owl.png"},
		{"birds/abc_owl.png", "https://signed.example/birds/abc_owl.png"},
	}
	for _, tt := range tests {
		if got := im.Resolve(ctx, tt.ref); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
	if st.presigns != 1 {
		t.Errorf("presigns = %d, want 1", st.presigns)
	}
}

func TestImages_ResolveFailureReturnsRaw(t *testing.T) {
	im := enrich.NewImages(&fakeStore{fail: true}, time.Hour, nil, zap.NewNop())
	if got := im.Resolve(context.Background(), "posts/x.jpg"); got != "posts/x.jpg" {
		t.Errorf("got %q, want raw key", got)
	}
}

func TestImages_NilResolver(t *testing.T) {
	var im *enrich.Images
	if got := im.Resolve(context.Background(), "posts/x.jpg"); got != "posts/x.jpg" {
		t.Errorf("got %q, want raw key", got)
	}
}

func TestImages_PostResolvesBirdToo(t *testing.T) {
	im := enrich.NewImages(&fakeStore{}, time.Hour, nil, nil)
	p := models.Post{
		Image:       "posts/p.jpg",
		BirdDetails: &models.Bird{ImageURL: "birds/b.jpg"},
	}
	im.Post(context.Background(), &p)
	if p.Image != "https://signed.example/posts/p.jpg" {
		t.Errorf("post image = %q", p.Image)
	}
	if p.BirdDetails.ImageURL != "https://signed.example/birds/b.jpg" {
		t.Errorf("bird image = %q", p.BirdDetails.ImageURL)
	}
}

func TestImages_RedisCache(t *testing.T) {
	addr := os.Getenv("BIRDBOOK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BIRDBOOK_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	key := "posts/" + primitive.NewObjectID().Hex() + ".jpg"
	defer rdb.Del(ctx, "birdbook:presign:"+key)

	st := &fakeStore{}
	im := enrich.NewImages(st, time.Hour, rdb, zap.NewNop())
	first := im.Resolve(ctx, key)
	second := im.Resolve(ctx, key)
	if first != second {
		t.Errorf("cached URL %q != first URL %q", second, first)
	}
	if st.presigns != 1 {
		t.Errorf("presigns = %d, want 1", st.presigns)
	}

	ttl, err := rdb.TTL(ctx, "birdbook:presign:"+key).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > 30*time.Minute {
		t.Errorf("cache ttl = %v, want (0, 30m]", ttl)
	}
}
