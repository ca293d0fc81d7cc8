package grouping

import (
	"sort"
	"strings"
)

// Group is an ordered, deduplicated tuple of record identifiers.  Every
// pairwise combination within a group is similar in BOTH disease space and
// drug space, and a group has at least two members; single-record rows are
// discarded during extraction.
type Group []string

// Len returns the group cardinality.
func (g Group) Len() int { return len(g) }

// Contains reports whether the group holds the given record ID.
func (g Group) Contains(id string) bool {
	for _, m := range g {
		if m == id {
			return true
		}
	}
	return false
}

// memberKey returns an order-independent identity key for the member set.
// Two groups with identical member sets map to the same key regardless of
// discovery order.
func (g Group) memberKey() string {
	sorted := append([]string(nil), g...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}

// memberSet returns the group's members as a set.
func (g Group) memberSet() map[string]struct{} {
	s := make(map[string]struct{}, len(g))
	for _, m := range g {
		s[m] = struct{}{}
	}
	return s
}

// subsetOf reports whether every member of g is contained in super.
func (g Group) subsetOf(super map[string]struct{}) bool {
	for _, m := range g {
		if _, ok := super[m]; !ok {
			return false
		}
	}
	return true
}

// extractCandidates scans the combined similarity rows and emits one
// candidate group per row whose true-entry count exceeds 1, i.e. the record
// is similar to at least one other record besides itself.  Members appear in
// column order.  Rows that resemble nothing (including rows for records that
// slipped through upstream filtering with no codes at all) yield no
// candidate.
func extractCandidates(combined *SimilarityMatrix) []Group {
	var out []Group
	ids := combined.IDs()
	for i := 0; i < combined.NumRows(); i++ {
		row := combined.Row(i)
		count := 0
		for _, sim := range row {
			if sim {
				count++
			}
		}
		if count <= 1 {
			continue
		}
		members := make(Group, 0, count)
		for j, sim := range row {
			if sim {
				members = append(members, ids[j])
			}
		}
		out = append(out, members)
	}
	return out
}

// dedupGroups removes duplicate candidate groups, treating member sets as the
// identity while preserving the first representative tuple encountered.
// Deduplication runs once over the full candidate list: with row-wise
// chunking identical groups may surface in different chunks, so per-chunk
// deduplication would not be sound.
func dedupGroups(candidates []Group) []Group {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Group, 0, len(candidates))
	for _, g := range candidates {
		key := g.memberKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
	}
	return out
}

// reduceSupergroups removes every group that is a subset of another group,
// leaving only maximal groups.  Groups are processed largest-first (stable
// sort, so equal-size groups keep their input order and the result is
// deterministic for a given input ordering); each accepted group eliminates
// all remaining groups its member set covers.  O(G²) worst case in the number
// of groups, acceptable because G is far smaller than the record count.
func reduceSupergroups(groups []Group) []Group {
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(groups[order[a]]) > len(groups[order[b]])
	})

	removed := make([]bool, len(groups))
	var out []Group
	for _, idx := range order {
		if removed[idx] {
			continue
		}
		accepted := groups[idx]
		out = append(out, accepted)
		removed[idx] = true

		super := accepted.memberSet()
		for _, other := range order {
			if removed[other] {
				continue
			}
			if groups[other].subsetOf(super) {
				removed[other] = true
			}
		}
	}
	return out
}
