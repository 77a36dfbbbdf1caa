// Package xref keeps the denormalized back-reference arrays on users
// (posts, groups) in step with writes made by the post and group services.
//
// Propagation runs after the owning entity has been written. It is
// synchronous, at-most-once and never retried; a failure leaves the owning
// entity committed and the array stale. BestEffort wraps a Propagator to
// give exactly that contract at every call site.
package xref

import (
	"context"
	"fmt"

	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Mode selects how array fields are mutated.
type Mode string

const (
	// ReadModifyWrite loads the whole document, edits the array in memory
	// and writes the document back. Concurrent writers to the same array
	// can lose updates.
	ReadModifyWrite Mode = "rmw"

	// Atomic uses the store's array operators ($push, $addToSet, $pull)
	// so concurrent writers cannot overwrite each other.
	Atomic Mode = "atomic"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ReadModifyWrite, Atomic:
		return Mode(s), nil
	case "":
		return ReadModifyWrite, nil
	}
	return "", fmt.Errorf("array_updates must be %q or %q, got %q", ReadModifyWrite, Atomic, s)
}

// Propagator appends back-references on the user who owns a new post or group.
type Propagator interface {
	AddPost(ctx context.Context, userID, postID primitive.ObjectID) error
	AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) error
}

// Ledger is the subset of the user service that Local delegates to.
type Ledger interface {
	AddPost(ctx context.Context, userID, postID primitive.ObjectID) error
	AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) error
}

// Local propagates through an in-process user ledger (monolith).
type Local struct {
	Ledger Ledger
}

func (l Local) AddPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return l.Ledger.AddPost(ctx, userID, postID)
}

func (l Local) AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) error {
	return l.Ledger.AddGroup(ctx, userID, groupID)
}

// UserClient is the subset of the user service client that Remote uses.
type UserClient interface {
	AddPost(ctx context.Context, userID, postID primitive.ObjectID) error
	AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) error
}

// Remote propagates over the network to the user service (split deployment).
type Remote struct {
	Client UserClient
}

func (r Remote) AddPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return r.Client.AddPost(ctx, userID, postID)
}

func (r Remote) AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) error {
	return r.Client.AddGroup(ctx, userID, groupID)
}

// Snapshotter resolves the user snapshot embedded on a new post, comment
// or group. In the monolith it reads the user store; in a split deployment
// it calls the user service. Failure means the author does not exist and
// the write must not happen.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID primitive.ObjectID) (models.PostUser, error)
}

// SnapshotFunc adapts a function to Snapshotter.
type SnapshotFunc func(ctx context.Context, userID primitive.ObjectID) (models.PostUser, error)

func (f SnapshotFunc) Snapshot(ctx context.Context, userID primitive.ObjectID) (models.PostUser, error) {
	return f(ctx, userID)
}

// BestEffort wraps p so that failures are logged and swallowed. The
// returned Notifier has nothing to report back to its caller.
func BestEffort(p Propagator, log *zap.Logger) Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return Notifier{next: p, log: log}
}

// Notifier sends back-references at most once and never fails the caller.
type Notifier struct {
	next Propagator
	log  *zap.Logger
}

func (n Notifier) AddPost(ctx context.Context, userID, postID primitive.ObjectID) {
	if err := n.next.AddPost(ctx, userID, postID); err != nil {
		n.log.Warn("back-reference propagation dropped",
			zap.String("kind", "user.posts"),
			zap.String("user_id", userID.Hex()),
			zap.String("post_id", postID.Hex()),
			zap.Error(err))
	}
}

func (n Notifier) AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) {
	if err := n.next.AddGroup(ctx, userID, groupID); err != nil {
		n.log.Warn("back-reference propagation dropped",
			zap.String("kind", "user.groups"),
			zap.String("user_id", userID.Hex()),
			zap.String("group_id", groupID.Hex()),
			zap.Error(err))
	}
}
