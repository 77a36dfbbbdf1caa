// internal/app/system/workers/refaudit.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/birdbook/internal/app/system/timeouts"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserLister yields every user with its back-reference arrays.
type UserLister interface {
	List(ctx context.Context) ([]models.User, error)
	ExistingIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error)
}

// IDChecker reports which ids still resolve to a document.
type IDChecker interface {
	ExistingIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error)
}

// AuditReport counts back-references that point at deleted entities.
type AuditReport struct {
	Users        int
	StalePosts   int
	StaleGroups  int
	StaleFriends int
}

// Stale is the total of stale references found.
func (r AuditReport) Stale() int {
	return r.StalePosts + r.StaleGroups + r.StaleFriends
}

// ReferenceAudit periodically scans users' posts, groups and friends arrays
// and logs how many ids no longer resolve. It never repairs anything.
type ReferenceAudit struct {
	users    UserLister
	posts    IDChecker
	groups   IDChecker
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewReferenceAudit creates the audit worker. interval must be positive.
func NewReferenceAudit(users UserLister, posts, groups IDChecker, logger *zap.Logger, interval time.Duration) *ReferenceAudit {
	return &ReferenceAudit{
		users:    users,
		posts:    posts,
		groups:   groups,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background audit loop.
func (w *ReferenceAudit) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("reference audit worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *ReferenceAudit) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("reference audit worker stopped")
}

func (w *ReferenceAudit) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Audit(), w.log, "reference audit")
			if _, err := w.Audit(ctx); err != nil {
				w.log.Error("reference audit failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Audit performs one pass and logs the result.
func (w *ReferenceAudit) Audit(ctx context.Context) (AuditReport, error) {
	start := time.Now()

	users, err := w.users.List(ctx)
	if err != nil {
		return AuditReport{}, err
	}

	var postIDs, groupIDs, friendIDs []primitive.ObjectID
	for _, u := range users {
		postIDs = append(postIDs, u.Posts...)
		groupIDs = append(groupIDs, u.Groups...)
		friendIDs = append(friendIDs, u.Friends...)
	}

	rep := AuditReport{Users: len(users)}
	if rep.StalePosts, err = countMissing(ctx, w.posts, postIDs); err != nil {
		return AuditReport{}, err
	}
	if rep.StaleGroups, err = countMissing(ctx, w.groups, groupIDs); err != nil {
		return AuditReport{}, err
	}
	if rep.StaleFriends, err = countMissing(ctx, w.users, friendIDs); err != nil {
		return AuditReport{}, err
	}

	fields := []zap.Field{
		zap.Int("users", rep.Users),
		zap.Int("stale_posts", rep.StalePosts),
		zap.Int("stale_groups", rep.StaleGroups),
		zap.Int("stale_friends", rep.StaleFriends),
		zap.Duration("took", time.Since(start)),
	}
	if rep.Stale() > 0 {
		w.log.Warn("stale back-references found", fields...)
	} else {
		w.log.Info("reference audit clean", fields...)
	}
	return rep, nil
}

// countMissing counts occurrences (not distinct ids) in ids that c cannot resolve.
func countMissing(ctx context.Context, c IDChecker, ids []primitive.ObjectID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	uniq := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			uniq = append(uniq, id)
		}
	}
	found, err := c.ExistingIDs(ctx, uniq)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if !found[id] {
			n++
		}
	}
	return n, nil
}
