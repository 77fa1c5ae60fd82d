package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRating(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		avg     float64
		total   int
	}{
		{"empty", nil, 0, 0},
		{"five and three", []int{5, 3}, 4.0, 2},
		{"rounds half up", []int{5, 4, 4, 4}, 4.3, 4}, // 4.25
		{"rounds down", []int{5, 5, 4}, 4.7, 3},     // 4.666
		{"ignores out of range", []int{0, 6, 2}, 2.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ComputeRating(tt.ratings)
			assert.InDelta(t, tt.avg, s.AverageRating, 1e-9)
			assert.Equal(t, tt.total, s.TotalReviews)
			assert.Len(t, s.RatingDistribution, 5)
		})
	}
}

func TestComputeRating_Distribution(t *testing.T) {
	s := ComputeRating([]int{5, 5, 3, 1})

	assert.Equal(t, map[int]int{1: 1, 2: 0, 3: 1, 4: 0, 5: 2}, s.RatingDistribution)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"averageRating":3.5,"totalReviews":4,"ratingDistribution":{"1":1,"2":0,"3":1,"4":0,"5":2}}`, string(raw))
}

func TestSummarizeCounts(t *testing.T) {
	s := SummarizeCounts(map[int]int{5: 1, 3: 1, 9: 4, 2: -1})

	assert.InDelta(t, 4.0, s.AverageRating, 1e-9)
	assert.Equal(t, 2, s.TotalReviews)
	assert.Equal(t, 0, s.RatingDistribution[2])
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("approve")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, a.Target())

	a, err = ParseAction("reject")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, a.Target())

	for _, bad := range []string{"", "APPROVE", "pending", "delete"} {
		_, err := ParseAction(bad)
		assert.Error(t, err, bad)
	}
}

func TestReview_Moderate(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	later := created.Add(time.Hour)
	r := &Review{Status: StatusPending, CreatedAt: created, UpdatedAt: created}

	prev := r.Moderate(ActionApprove, later)
	assert.Equal(t, StatusPending, prev)
	assert.Equal(t, StatusApproved, r.Status)
	assert.Equal(t, later, r.UpdatedAt)

	prev = r.Moderate(ActionApprove, later)
	assert.Equal(t, StatusApproved, prev)
	assert.Equal(t, StatusApproved, r.Status)

	prev = r.Moderate(ActionReject, later)
	assert.Equal(t, StatusApproved, prev)
	assert.Equal(t, StatusRejected, r.Status)
}

func TestMergeBody(t *testing.T) {
	assert.Equal(t, "Solid\n\nWorks as described.", MergeBody(" Solid ", "Works as described."))
	assert.Equal(t, "Works as described.", MergeBody("", "Works as described. "))
}

func TestValidateRating(t *testing.T) {
	for r := MinRating; r <= MaxRating; r++ {
		assert.NoError(t, ValidateRating(r))
	}
	assert.Error(t, ValidateRating(0))
	assert.Error(t, ValidateRating(6))
}

func TestReview_JSONIDIsString(t *testing.T) {
	raw, err := json.Marshal(Review{ID: 1790023437891526656, Status: StatusPending})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"1790023437891526656"`)
}

func TestSnowflakeGenerator(t *testing.T) {
	_, err := NewSnowflakeGenerator(4096)
	assert.Error(t, err)

	gen, err := NewSnowflakeGenerator(1)
	require.NoError(t, err)

	prev := gen.NewID()
	for range 100 {
		next := gen.NewID()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusRejected.Valid())
	assert.False(t, Status("hidden").Valid())
}
