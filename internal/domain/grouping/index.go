package grouping

import "sort"

// Index holds derived lookup views over a group collection: per-group sizes,
// per-record membership, and the overall set of grouped records.  An Index
// is a snapshot of the collection it was built from; callers rebuild it when
// the collection changes.
type Index struct {
	groups   []Group
	byRecord map[string][]int
}

// BuildIndex derives an Index from a group collection.
func BuildIndex(groups []Group) *Index {
	byRecord := make(map[string][]int)
	for ord, g := range groups {
		for _, id := range g {
			byRecord[id] = append(byRecord[id], ord)
		}
	}
	return &Index{groups: groups, byRecord: byRecord}
}

// NumGroups returns the number of groups indexed.
func (x *Index) NumGroups() int { return len(x.groups) }

// GroupSizes returns the cardinality of each group, in collection order.
func (x *Index) GroupSizes() []int {
	sizes := make([]int, len(x.groups))
	for i, g := range x.groups {
		sizes[i] = len(g)
	}
	return sizes
}

// GroupsContaining returns every group the record belongs to, in collection
// order.  Records in no group yield an empty slice.
func (x *Index) GroupsContaining(id string) []Group {
	ords := x.byRecord[id]
	out := make([]Group, 0, len(ords))
	for _, ord := range ords {
		out = append(out, x.groups[ord])
	}
	return out
}

// MembershipCount returns how many groups the record belongs to.
func (x *Index) MembershipCount(id string) int {
	return len(x.byRecord[id])
}

// IsGrouped reports whether the record belongs to at least one group.
func (x *Index) IsGrouped(id string) bool {
	return len(x.byRecord[id]) > 0
}

// GroupedRecords returns the sorted identifiers of every record that belongs
// to at least one group.
func (x *Index) GroupedRecords() []string {
	out := make([]string, 0, len(x.byRecord))
	for id := range x.byRecord {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Members returns the union of the member sets of the requested groups, as
// sorted record identifiers.  Group ids are collection ordinals; ids outside
// the collection are ignored.
func (x *Index) Members(groupIDs ...int) []string {
	seen := make(map[string]struct{})
	for _, ord := range groupIDs {
		if ord < 0 || ord >= len(x.groups) {
			continue
		}
		for _, id := range x.groups[ord] {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GroupsContainingAny returns, in collection order, every group holding at
// least one of the given records.  Each group appears once.
func (x *Index) GroupsContainingAny(ids ...string) []Group {
	ordSet := make(map[int]struct{})
	for _, id := range ids {
		for _, ord := range x.byRecord[id] {
			ordSet[ord] = struct{}{}
		}
	}
	ords := make([]int, 0, len(ordSet))
	for ord := range ordSet {
		ords = append(ords, ord)
	}
	sort.Ints(ords)
	out := make([]Group, 0, len(ords))
	for _, ord := range ords {
		out = append(out, x.groups[ord])
	}
	return out
}
