package domain

import (
	"sort"
	"strings"
)

// RoleID identifies an access role on the chat platform (a Discord snowflake).
type RoleID string

// RoleSet is an unordered set of role ids.
type RoleSet map[RoleID]struct{}

// NewRoleSet builds a set from the given ids.
func NewRoleSet(ids ...RoleID) RoleSet {
	s := make(RoleSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set. Empty ids are ignored.
func (s RoleSet) Add(id RoleID) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Union adds every member of other to s.
func (s RoleSet) Union(other RoleSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Has reports membership.
func (s RoleSet) Has(id RoleID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of roles in the set.
func (s RoleSet) Len() int { return len(s) }

// Sorted returns the members in ascending order, for stable output.
func (s RoleSet) Sorted() []RoleID {
	out := make([]RoleID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s RoleSet) String() string {
	ids := s.Sorted()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
