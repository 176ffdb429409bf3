package model

import (
	"database/sql/driver"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeatSet_JSON(t *testing.T) {
	t.Parallel()

	s := NewSeatSet([]string{"B2", "A1", "A10"})
	out, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `["A1","A10","B2"]`, string(out))

	var back SeatSet
	require.NoError(t, json.Unmarshal(out, &back))
	require.Equal(t, 3, back.Len())
	require.True(t, back.Contains("A10"))
}

func TestSeatSet_SeatsWithCommasSurviveStorage(t *testing.T) {
	t.Parallel()

	// Seat labels are opaque strings; labels containing separators or
	// quotes must round-trip through the JSON column untouched.
	labels := []string{`Box "Royal", Seat 1`, "A,1", "A;1"}
	s := NewSeatSet(labels)

	v, err := s.Value()
	require.NoError(t, err)

	var back SeatSet
	require.NoError(t, back.Scan(v))
	require.Equal(t, s.Sorted(), back.Sorted())
}

func TestSeatSet_Scan(t *testing.T) {
	t.Parallel()

	var s SeatSet
	require.NoError(t, s.Scan([]byte(`["A1","A2"]`)))
	require.True(t, s.Contains("A1"))

	var fromString SeatSet
	require.NoError(t, fromString.Scan(`["C3"]`))
	require.True(t, fromString.Contains("C3"))

	var empty SeatSet
	require.NoError(t, empty.Scan(nil))
	require.Equal(t, 0, empty.Len())

	var _ driver.Valuer = SeatSet{}
}

func TestSeatSet_Intersect(t *testing.T) {
	t.Parallel()

	a := NewSeatSet([]string{"A1", "A2", "A3"})
	b := NewSeatSet([]string{"A2", "A3", "A4"})
	require.Equal(t, []string{"A2", "A3"}, a.Intersect(b).Sorted())
	require.Equal(t, 0, a.Intersect(NewSeatSet(nil)).Len())
}
