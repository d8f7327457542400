package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/beachclub/internal/domain"
)

func TestTicketNumber(t *testing.T) {
	assert.Equal(t, "250701001", TicketNumber(day1, 1))
	assert.Equal(t, "251231042", TicketNumber(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), 42))
	assert.Equal(t, "2507011000", TicketNumber(day1, 1000))
	assert.Equal(t, "250701001-3", ChildTicketNumber("250701001", 3))
}

func TestCreateRequestPlan(t *testing.T) {
	testCases := []struct {
		name    string
		req     CreateRequest
		want    map[string][]int64
		wantErr error
	}{
		{
			name: "same furniture every day",
			req:  CreateRequest{Dates: []time.Time{day2, day1, day2}, FurnitureIDs: []int64{4, 4, 5}},
			want: map[string][]int64{"2025-07-01": {4, 5}, "2025-07-02": {4, 5}},
		},
		{
			name: "per day override",
			req: CreateRequest{
				Dates:           []time.Time{day1, day2},
				FurnitureIDs:    []int64{4},
				FurnitureByDate: map[string][]int64{"2025-07-02": {6}, "2025-07-09": {7}},
			},
			want: map[string][]int64{"2025-07-01": {4}, "2025-07-02": {6}},
		},
		{
			name: "empty override falls back",
			req: CreateRequest{
				Dates:           []time.Time{day1},
				FurnitureIDs:    []int64{4},
				FurnitureByDate: map[string][]int64{"2025-07-01": {}},
			},
			want: map[string][]int64{"2025-07-01": {4}},
		},
		{
			name:    "no dates",
			req:     CreateRequest{FurnitureIDs: []int64{4}},
			wantErr: ErrNoDates,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			days, err := tc.req.plan()
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			got := map[string][]int64{}
			for _, d := range days {
				got[domain.DateKey(d.Date)] = d.FurnitureIDs
			}
			assert.Equal(t, tc.want, got)
			assert.True(t, days[0].Date.Equal(day1), "days are ordered")
		})
	}
}

func TestCreateRequestPlan_DayWithoutFurniture(t *testing.T) {
	_, err := CreateRequest{
		Dates:           []time.Time{day1, day2},
		FurnitureByDate: map[string][]int64{"2025-07-01": {1}},
	}.plan()

	var nf NoFurnitureError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, day2, nf.Date)
}

func TestPlanHelpers(t *testing.T) {
	days := []dayPlan{
		{Date: day1, FurnitureIDs: []int64{1, 2}},
		{Date: day2, FurnitureIDs: []int64{2, 3}},
	}

	assert.Equal(t, []time.Time{day1, day2}, planDates(days))
	assert.Equal(t, []int64{1, 2, 3}, planFurniture(days))
}

func TestFurnitureOn(t *testing.T) {
	rows := []domain.Assignment{
		{FurnitureID: 3, AssignmentDate: day1, ReservationID: 1},
		{FurnitureID: 1, AssignmentDate: day1, ReservationID: 1},
		{FurnitureID: 2, AssignmentDate: day2, ReservationID: 1},
		{FurnitureID: 4, AssignmentDate: day1, ReservationID: 2},
	}

	assert.Equal(t, []int64{1, 3}, furnitureOn(rows, 1, day1.Add(9*time.Hour)))
	assert.Nil(t, furnitureOn(rows, 3, day1))
}

func TestSameSet(t *testing.T) {
	assert.True(t, sameSet([]int64{3, 1}, []int64{1, 3, 3}))
	assert.True(t, sameSet(nil, []int64{}))
	assert.False(t, sameSet([]int64{1}, []int64{1, 2}))
}
