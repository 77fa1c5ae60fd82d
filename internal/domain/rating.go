package domain

import "math"

// RatingSummary is the aggregate over a product's approved reviews.
type RatingSummary struct {
	AverageRating      float64     `json:"averageRating"`
	TotalReviews       int         `json:"totalReviews"`
	RatingDistribution map[int]int `json:"ratingDistribution"`
}

// ComputeRating aggregates individual star ratings. Values outside 1-5 are
// ignored.
func ComputeRating(ratings []int) RatingSummary {
	counts := make(map[int]int, MaxRating)
	for _, r := range ratings {
		counts[r]++
	}
	return SummarizeCounts(counts)
}

// SummarizeCounts aggregates a star -> count histogram. The mean is rounded
// half-up to one decimal place; an empty histogram yields zeros.
func SummarizeCounts(counts map[int]int) RatingSummary {
	summary := RatingSummary{RatingDistribution: make(map[int]int, MaxRating)}

	sum := 0
	for star := MinRating; star <= MaxRating; star++ {
		n := max(counts[star], 0)
		summary.RatingDistribution[star] = n
		summary.TotalReviews += n
		sum += star * n
	}
	if summary.TotalReviews == 0 {
		return summary
	}

	mean := float64(sum) / float64(summary.TotalReviews)
	summary.AverageRating = math.Floor(mean*10+0.5) / 10
	return summary
}
