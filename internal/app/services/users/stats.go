package usersvc

import (
	"context"
	"sort"
	"time"

	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Badge names.
const (
	BadgeFirstSighting   = "first_sighting"
	BadgeCollector       = "collector"
	BadgeSocialButterfly = "social_butterfly"
	BadgePhotographer    = "photographer"
)

const topBirdsLimit = 5

// BirdCount is one row of a top-birds list.
type BirdCount struct {
	BirdID primitive.ObjectID `json:"bird_id"`
	Count  int                `json:"count"`
	Bird   *models.Bird       `json:"bird,omitempty"`
}

// Stats is the profile statistics block.
type Stats struct {
	TotalSpottings     int         `json:"total_spottings"`
	FirstSightingDate  *time.Time  `json:"first_sighting_date"`
	UniqueBirdsSpotted int         `json:"unique_birds_spotted"`
	MostSpottedBird    *BirdCount  `json:"most_spotted_bird"`
	TopBirdsAllTime    []BirdCount `json:"top_birds_all_time"`
	TopBirdsThisMonth  []BirdCount `json:"top_birds_this_month"`
	TotalLikes         int         `json:"total_likes"`
	Badges             []string    `json:"badges"`
}

// Stats computes statistics from the posts the user authored. Posts are
// found by author, not through the user's posts array, so stale ids in
// the array do not count.
func (s *Service) Stats(ctx context.Context, id primitive.ObjectID) (Stats, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	posts, err := s.posts.ByUser(ctx, id)
	if err != nil {
		return Stats{}, err
	}

	st := ComputeStats(posts, len(u.Friends), s.now())

	birds, err := s.birdsFor(ctx, st)
	if err != nil {
		return Stats{}, err
	}
	if st.MostSpottedBird != nil {
		st.MostSpottedBird.Bird = birds[st.MostSpottedBird.BirdID]
	}
	attach(st.TopBirdsAllTime, birds)
	attach(st.TopBirdsThisMonth, birds)
	return st, nil
}

// TopBirds returns the user's five most spotted birds this calendar month
// (UTC). Birds that no longer exist are dropped.
func (s *Service) TopBirds(ctx context.Context, id primitive.ObjectID) ([]BirdCount, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	posts, err := s.posts.ByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	top := countBirds(chronological(posts), monthFilter(s.now()))
	top = limitCounts(top)
	if len(top) == 0 {
		return []BirdCount{}, nil
	}

	ids := make([]primitive.ObjectID, len(top))
	for i, c := range top {
		ids[i] = c.BirdID
	}
	found, err := s.birds.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := indexBirds(found)

	out := make([]BirdCount, 0, len(top))
	for _, c := range top {
		if b, ok := byID[c.BirdID]; ok {
			c.Bird = b
			out = append(out, c)
		}
	}
	return out, nil
}

// ComputeStats is the pure part of Stats. friendCount feeds the
// social_butterfly badge; now fixes the current month.
func ComputeStats(posts []models.Post, friendCount int, now time.Time) Stats {
	posts = chronological(posts)

	st := Stats{
		TotalSpottings:    len(posts),
		TopBirdsAllTime:   []BirdCount{},
		TopBirdsThisMonth: []BirdCount{},
		Badges:            []string{},
	}
	if len(posts) > 0 {
		first := posts[0].Timestamp
		st.FirstSightingDate = &first
	}
	for _, p := range posts {
		st.TotalLikes += len(p.Likes)
	}

	all := countBirds(posts, nil)
	st.UniqueBirdsSpotted = len(all)
	if len(all) > 0 {
		top := all[0]
		st.MostSpottedBird = &top
	}
	st.TopBirdsAllTime = limitCounts(all)
	st.TopBirdsThisMonth = limitCounts(countBirds(posts, monthFilter(now)))

	if st.TotalSpottings >= 1 {
		st.Badges = append(st.Badges, BadgeFirstSighting)
	}
	if st.UniqueBirdsSpotted >= 10 {
		st.Badges = append(st.Badges, BadgeCollector)
	}
	if friendCount >= 3 {
		st.Badges = append(st.Badges, BadgeSocialButterfly)
	}
	if st.TotalLikes >= 5 {
		st.Badges = append(st.Badges, BadgePhotographer)
	}
	return st
}

// countBirds counts bird ids over posts (already in chronological order),
// highest count first. Equal counts keep first-occurrence order.
func countBirds(posts []models.Post, keep func(models.Post) bool) []BirdCount {
	idx := map[primitive.ObjectID]int{}
	out := []BirdCount{}
	for _, p := range posts {
		if p.Bird == nil || (keep != nil && !keep(p)) {
			continue
		}
		if i, ok := idx[*p.Bird]; ok {
			out[i].Count++
			continue
		}
		idx[*p.Bird] = len(out)
		out = append(out, BirdCount{BirdID: *p.Bird, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func monthFilter(now time.Time) func(models.Post) bool {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return func(p models.Post) bool {
		ts := p.Timestamp.UTC()
		return !ts.Before(start) && ts.Before(end)
	}
}

func chronological(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	copy(out, posts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func limitCounts(in []BirdCount) []BirdCount {
	if len(in) > topBirdsLimit {
		in = in[:topBirdsLimit]
	}
	out := make([]BirdCount, len(in))
	copy(out, in)
	return out
}

func (s *Service) birdsFor(ctx context.Context, st Stats) (map[primitive.ObjectID]*models.Bird, error) {
	seen := map[primitive.ObjectID]bool{}
	ids := []primitive.ObjectID{}
	add := func(list []BirdCount) {
		for _, c := range list {
			if !seen[c.BirdID] {
				seen[c.BirdID] = true
				ids = append(ids, c.BirdID)
			}
		}
	}
	if st.MostSpottedBird != nil {
		add([]BirdCount{*st.MostSpottedBird})
	}
	add(st.TopBirdsAllTime)
	add(st.TopBirdsThisMonth)
	if len(ids) == 0 || s.birds == nil {
		return map[primitive.ObjectID]*models.Bird{}, nil
	}
	found, err := s.birds.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return indexBirds(found), nil
}

func indexBirds(birds []models.Bird) map[primitive.ObjectID]*models.Bird {
	out := make(map[primitive.ObjectID]*models.Bird, len(birds))
	for i := range birds {
		out[birds[i].ID] = &birds[i]
	}
	return out
}

func attach(list []BirdCount, birds map[primitive.ObjectID]*models.Bird) {
	for i := range list {
		list[i].Bird = birds[list[i].BirdID]
	}
}
