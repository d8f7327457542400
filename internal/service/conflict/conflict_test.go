package conflict

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/beachclub/internal/domain"
)

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleConflicts() domain.ConflictMap {
	m := domain.ConflictMap{}
	m.Add(domain.Conflict{FurnitureID: 5, Date: day("2025-07-02"), Kind: domain.ConflictBlock, BlockID: 1})
	m.Add(domain.Conflict{FurnitureID: 3, Date: day("2025-07-01"), Kind: domain.ConflictReservation, ReservationID: 20})
	m.Add(domain.Conflict{FurnitureID: 1, Date: day("2025-07-01"), Kind: domain.ConflictReservation, ReservationID: 20})
	m.Add(domain.Conflict{FurnitureID: 1, Date: day("2025-07-01"), Kind: domain.ConflictBlock, BlockID: 2})
	return m
}

func TestGroupByDate(t *testing.T) {
	groups := GroupByDate(sampleConflicts())
	require.Len(t, groups, 2)

	first := groups[0]
	assert.Equal(t, "2025-07-01", domain.DateKey(first.Date))
	assert.Equal(t, []int64{1, 3}, first.FurnitureIDs)
	assert.Equal(t, []int64{20}, first.ReservationIDs)
	assert.Len(t, first.Conflicts, 3)
	assert.False(t, first.BlockedByHoldsOnly)

	second := groups[1]
	assert.Equal(t, "2025-07-02", domain.DateKey(second.Date))
	assert.Equal(t, []int64{5}, second.FurnitureIDs)
	assert.Empty(t, second.ReservationIDs)
	assert.True(t, second.BlockedByHoldsOnly)
}

func TestGroupByDate_Empty(t *testing.T) {
	assert.Empty(t, GroupByDate(domain.ConflictMap{}))
}

func TestAttachAlternatives(t *testing.T) {
	groups := GroupByDate(sampleConflicts())

	var asked []string
	err := AttachAlternatives(groups, func(d time.Time) ([]domain.FurnitureItem, error) {
		asked = append(asked, domain.DateKey(d))
		return []domain.FurnitureItem{{ID: 9, Number: "A9"}}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-01", "2025-07-02"}, asked)
	for _, g := range groups {
		require.Len(t, g.Alternatives, 1)
		assert.Equal(t, int64(9), g.Alternatives[0].ID)
	}
}

func TestAttachAlternatives_Error(t *testing.T) {
	boom := errors.New("boom")
	err := AttachAlternatives(GroupByDate(sampleConflicts()), func(time.Time) ([]domain.FurnitureItem, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestMerge(t *testing.T) {
	previous := map[string][]int64{
		"2025-07-01": {1, 3},
		"2025-07-02": {1, 3},
	}

	r := Resolution{}
	r.Set(day("2025-07-01"), []int64{4, 4, 6})
	r["2025-07-03"] = nil

	got := Merge(previous, r)

	assert.Equal(t, []int64{4, 6}, got["2025-07-01"])
	assert.Equal(t, []int64{1, 3}, got["2025-07-02"])
	assert.NotContains(t, got, "2025-07-03")

	got["2025-07-02"][0] = 99
	assert.Equal(t, int64(1), previous["2025-07-02"][0], "inputs stay untouched")
}

func TestPending(t *testing.T) {
	groups := GroupByDate(sampleConflicts())

	testCases := []struct {
		name string
		res  Resolution
		want []string
	}{
		{name: "nothing resolved", res: Resolution{}, want: []string{"2025-07-01", "2025-07-02"}},
		{
			name: "replacement still conflicting",
			res: Resolution{
				"2025-07-01": {3, 8},
				"2025-07-02": {6},
			},
			want: []string{"2025-07-01"},
		},
		{
			name: "all resolved",
			res: Resolution{
				"2025-07-01": {7, 8},
				"2025-07-02": {6},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			for _, d := range Pending(groups, tc.res) {
				got = append(got, domain.DateKey(d))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
