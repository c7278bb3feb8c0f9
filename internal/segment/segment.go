// Package segment evaluates tag-based list membership over association
// rows. The Postgres store expresses the same rules in SQL; this is the
// in-process rendition used by the memory store.
package segment

import (
	"github.com/google/uuid"
	"github.com/lalith-99/cdpcore/internal/models"
)

// Match returns the ids of profiles that satisfy logic over tagIDs, given
// the association rows of one company.
//
//   - any: profile has at least one of tagIDs. Each profile appears once
//     no matter how many of the tags it carries.
//   - all: profile carries every distinct tag in tagIDs.
//
// An empty tagIDs matches nobody under either logic. Result order follows
// first appearance in assocs; callers sort by recency.
func Match(assocs []models.ProfileTag, tagIDs []uuid.UUID, logic models.TagLogic) []uuid.UUID {
	wanted := make(map[uuid.UUID]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		wanted[id] = struct{}{}
	}
	if len(wanted) == 0 {
		return []uuid.UUID{}
	}

	// Distinct matched tags per profile. Keying by tag id means a
	// duplicated row could never inflate the count.
	matched := make(map[uuid.UUID]map[uuid.UUID]struct{})
	order := make([]uuid.UUID, 0)
	for _, a := range assocs {
		if _, ok := wanted[a.TagID]; !ok {
			continue
		}
		tags, seen := matched[a.ProfileID]
		if !seen {
			tags = make(map[uuid.UUID]struct{})
			matched[a.ProfileID] = tags
			order = append(order, a.ProfileID)
		}
		tags[a.TagID] = struct{}{}
	}

	out := make([]uuid.UUID, 0, len(order))
	for _, pid := range order {
		switch logic {
		case models.TagLogicAll:
			if len(matched[pid]) == len(wanted) {
				out = append(out, pid)
			}
		default:
			out = append(out, pid)
		}
	}
	return out
}

// Page applies skip/limit to an already-ordered slice. limit <= 0 means
// everything after skip.
func Page[T any](items []T, limit, skip int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
