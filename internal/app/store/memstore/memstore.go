// Package memstore provides in-memory versions of the Mongo stores with the
// same method sets and error kinds. Service tests use it to exercise
// cross-entity behavior without a database.
//
// Every value crosses the package boundary as a deep copy, so a caller
// holding a document it read earlier sees exactly what a Mongo client would:
// a snapshot that a later Save from someone else can overwrite.
package memstore

import (
	"sort"
	"strings"
	"sync"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hooks lets tests inject failures and interleavings.
type Hooks struct {
	mu sync.RWMutex

	// Fail, when set, is consulted at the start of every operation; a non-nil
	// return aborts the operation with that error.
	Fail func(op string, id primitive.ObjectID) error

	// AfterRead, when set, runs after a document has been read and copied
	// but before the copy is returned. The store lock is not held.
	AfterRead func(op string, id primitive.ObjectID)
}

// SetFail installs a failure injector.
func (h *Hooks) SetFail(f func(op string, id primitive.ObjectID) error) {
	h.mu.Lock()
	h.Fail = f
	h.mu.Unlock()
}

// SetAfterRead installs a post-read callback.
func (h *Hooks) SetAfterRead(f func(op string, id primitive.ObjectID)) {
	h.mu.Lock()
	h.AfterRead = f
	h.mu.Unlock()
}

func (h *Hooks) fail(op string, id primitive.ObjectID) error {
	h.mu.RLock()
	f := h.Fail
	h.mu.RUnlock()
	if f == nil {
		return nil
	}
	return f(op, id)
}

func (h *Hooks) afterRead(op string, id primitive.ObjectID) {
	h.mu.RLock()
	f := h.AfterRead
	h.mu.RUnlock()
	if f != nil {
		f(op, id)
	}
}

// FailOn returns a Fail hook that errors for one (op, id) pair.
func FailOn(op string, id primitive.ObjectID, err error) func(string, primitive.ObjectID) error {
	return func(gotOp string, gotID primitive.ObjectID) error {
		if gotOp == op && gotID == id {
			return err
		}
		return nil
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(text.Fold(haystack), text.Fold(needle))
}

func limitTo[T any](in []T, limit int64) []T {
	if limit > 0 && int64(len(in)) > limit {
		return in[:limit]
	}
	return in
}

func sortBy[T any](in []T, less func(a, b T) bool) []T {
	sort.SliceStable(in, func(i, j int) bool { return less(in[i], in[j]) })
	return in
}

func idLess(a, b primitive.ObjectID) bool {
	return a.Hex() < b.Hex()
}
