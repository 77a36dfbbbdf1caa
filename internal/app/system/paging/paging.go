// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in a paged list.
const PageSize = 50

// ParsePage extracts the 1-based "page" query parameter.
// Returns 1 if not present or invalid.
func ParsePage(r *http.Request) int {
	s := query.Get(r, "page")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Offset returns the number of rows before page.
func Offset(page int) int64 {
	if page < 1 {
		page = 1
	}
	return int64((page - 1) * PageSize)
}

// TotalPages returns how many pages total rows fill, never less than 1.
func TotalPages(total int64) int {
	if total <= 0 {
		return 1
	}
	return int((total + PageSize - 1) / PageSize)
}

// Page describes one page of a list for JSON responses.
type Page struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
	Total      int64 `json:"total"`
	Start      int   `json:"start"` // 1-based index of the first row, 0 if empty
	End        int   `json:"end"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// Describe builds the Page for page given the total row count and the
// number of rows actually returned.
func Describe(page int, total int64, shown int) Page {
	if page < 1 {
		page = 1
	}
	p := Page{
		Page:       page,
		TotalPages: TotalPages(total),
		Total:      total,
		HasPrev:    page > 1,
	}
	p.HasNext = page < p.TotalPages
	if shown > 0 {
		p.Start = int(Offset(page)) + 1
		p.End = p.Start + shown - 1
	}
	return p
}
