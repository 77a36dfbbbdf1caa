// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/birdbook/internal/app/store/audit"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"github.com/dalemusser/birdbook/internal/app/system/paging"
	"github.com/dalemusser/birdbook/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ServeList handles GET /audit?category=&event_type=&user_id=&start_date=&end_date=&page=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	filter, err := parseFilter(r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "audit log list", err)
		return
	}
	page := paging.ParsePage(r)
	filter.Limit = paging.PageSize
	filter.Offset = paging.Offset(page)

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		jsonresp.FromError(w, h.Log, "audit log list", err)
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		jsonresp.FromError(w, h.Log, "audit log count", err)
		return
	}

	names := h.usernames(r, events)
	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:        e.ID.Hex(),
			Timestamp: e.Timestamp,
			Category:  e.Category,
			EventType: e.EventType,
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		}
		if e.ActorID != nil {
			item.ActorID = e.ActorID.Hex()
			item.ActorName = names[*e.ActorID]
		}
		if e.UserID != nil {
			item.TargetID = e.UserID.Hex()
			item.TargetName = names[*e.UserID]
		}
		items = append(items, item)
	}

	jsonresp.OK(w, listResponse{
		Items:      items,
		EventTypes: eventTypesForCategory(filter.Category),
		Page:       paging.Describe(page, total, len(items)),
	})
}

func parseFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	f := audit.QueryFilter{
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
	}
	if f.Category != "" && eventTypesForCategory(f.Category) == nil {
		return f, apperr.Invalid("category", "Unknown category: %s", f.Category)
	}
	if s := strings.TrimSpace(q.Get("user_id")); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return f, apperr.Invalid("user_id", "Invalid user id")
		}
		f.UserID = &id
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, apperr.Invalid("start_date", "Dates must look like %s", dateLayout)
		}
		f.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, apperr.Invalid("end_date", "Dates must look like %s", dateLayout)
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime = &endOfDay
	}
	return f, nil
}

// usernames resolves actor and target ids in one batch. Deleted users and
// lookup failures leave the name empty.
func (h *Handler) usernames(r *http.Request, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	add := func(id *primitive.ObjectID) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; !ok {
			seen[*id] = struct{}{}
			ids = append(ids, *id)
		}
	}
	for _, e := range events {
		add(e.ActorID)
		add(e.UserID)
	}

	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	users, err := h.Users.GetByIDs(r.Context(), ids)
	if err != nil {
		h.Log.Warn("failed to fetch usernames for audit log", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names
}
