package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// SeatSet is the canonical in-memory representation of a group of seat
// identifiers such as "A1" or "B12".  It behaves as a set: membership is
// unique and order is irrelevant.  At the storage boundary the set is
// serialized as a JSON array of strings, which keeps identifiers containing
// arbitrary characters (including commas) round-trip safe.
type SeatSet map[string]struct{}

// NewSeatSet builds a SeatSet from a slice of identifiers.  Empty strings
// and duplicates are dropped.
func NewSeatSet(ids []string) SeatSet {
	s := make(SeatSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether the identifier is a member of the set.
func (s SeatSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts an identifier into the set.  Adding an existing member is a
// no-op.
func (s SeatSet) Add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

// AddAll inserts every member of other into the set.
func (s SeatSet) AddAll(other SeatSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Intersect returns the members present in both sets.
func (s SeatSet) Intersect(other SeatSet) SeatSet {
	out := make(SeatSet)
	for id := range s {
		if other.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Len returns the number of seat identifiers in the set.
func (s SeatSet) Len() int { return len(s) }

// Sorted returns the members as a lexicographically sorted slice.  Sorting
// makes JSON output and log lines deterministic.
func (s SeatSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted JSON array of strings.
func (s SeatSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a JSON array of strings into the set.
func (s *SeatSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSeatSet(ids)
	return nil
}

// Value implements driver.Valuer so a SeatSet can be written directly to a
// JSON column.
func (s SeatSet) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for reading a JSON column back into a SeatSet.
// NULL scans to an empty set.
func (s *SeatSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = make(SeatSet)
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("seat set: cannot scan %T", src)
	}
}
