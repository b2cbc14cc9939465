package audit

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// FilterFromValues builds a Filter from query-string style values. List
// parameters may repeat or be comma separated. Dates are RFC 3339 or
// YYYY-MM-DD.
func FilterFromValues(v url.Values) (Filter, error) {
	f := Filter{
		Operations:  splitList(v["operation"]),
		EntityTypes: splitList(v["entity_type"]),
		EntityIDs:   splitList(v["entity_id"]),
		PerformedBy: v.Get("performed_by"),
		Context:     v.Get("context"),
		Search:      v.Get("search"),
		SortBy:      v.Get("sort_by"),
		SortOrder:   v.Get("sort_order"),
	}
	for _, l := range splitList(v["level"]) {
		level := models.LogLevel(strings.ToLower(l))
		if !level.IsValid() {
			return Filter{}, fmt.Errorf("unknown log level %q", l)
		}
		f.Levels = append(f.Levels, level)
	}

	var err error
	if f.StartDate, err = parseDate(v.Get("start_date")); err != nil {
		return Filter{}, fmt.Errorf("start_date: %w", err)
	}
	if f.EndDate, err = parseDate(v.Get("end_date")); err != nil {
		return Filter{}, fmt.Errorf("end_date: %w", err)
	}
	if f.Limit, err = parseCount(v.Get("limit")); err != nil {
		return Filter{}, fmt.Errorf("limit: %w", err)
	}
	if f.Offset, err = parseCount(v.Get("offset")); err != nil {
		return Filter{}, fmt.Errorf("offset: %w", err)
	}
	return f, nil
}

// ParseDate accepts RFC 3339 or a bare YYYY-MM-DD date (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer, got %q", s)
	}
	return n, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
