package search

import (
	"sort"
	"strings"
)

// Filter applies a query to docs in memory: case-insensitive substring
// match over title, description, type and refId, AND-combined with the
// exact status filter when one is set. The sort is stable, so equal
// timestamps keep their original order.
func Filter(docs []Doc, q Query) []Doc {
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if q.Kind != "" && d.Kind != q.Kind {
			continue
		}
		if q.Status != "" && d.Status != q.Status {
			continue
		}
		if needle != "" && !matches(d, needle) {
			continue
		}
		out = append(out, d)
	}

	if q.Sort == SortOldest {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matches(d Doc, needle string) bool {
	for _, field := range []string{d.Title, d.Description, d.Type, d.RefID} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
