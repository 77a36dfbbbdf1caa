package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that call a handler method directly.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts documents directly into a test database, bypassing
// the stores under test.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user with empty back-reference arrays.
func (f *Fixtures) CreateUser(ctx context.Context, username, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:         primitive.NewObjectID(),
		Username:   username,
		UsernameCI: text.Fold(username),
		Role:       role,
		Friends:    []primitive.ObjectID{},
		Posts:      []primitive.ObjectID{},
		Groups:     []primitive.ObjectID{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateBird inserts a catalogue entry.
func (f *Fixtures) CreateBird(ctx context.Context, commonName, scientificName string) models.Bird {
	f.t.Helper()

	b := models.Bird{
		ID:             primitive.NewObjectID(),
		CommonName:     commonName,
		CommonNameCI:   text.Fold(commonName),
		ScientificName: scientificName,
	}
	if _, err := f.db.Collection("birds").InsertOne(ctx, b); err != nil {
		f.t.Fatalf("failed to create test bird: %v", err)
	}
	return b
}

// CreateGroup inserts a group owned by owner with no members or requests.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, owner models.User) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Owner:     owner.Snapshot(),
		Members:   []models.PostUser{},
		Requests:  []models.PostUser{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// CreatePost inserts a post authored by author.
func (f *Fixtures) CreatePost(ctx context.Context, author models.User, header string, bird *primitive.ObjectID) models.Post {
	f.t.Helper()

	p := models.Post{
		ID:        primitive.NewObjectID(),
		User:      author.Snapshot(),
		Header:    header,
		TextBody:  "seen from the boardwalk",
		Bird:      bird,
		Likes:     []primitive.ObjectID{},
		Comments:  []models.Comment{},
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := f.db.Collection("posts").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test post: %v", err)
	}
	return p
}
