// Package rating models a peer's accumulated reputation: total review count,
// running rating sum, and the bounds the server enforces on individual
// ratings.
package rating

// Rating mirrors the reputation record the server reports for a pubkey.
// Invariants: TotalReviews >= 0, TotalRating >= 0, MinRate <= LastRating <=
// MaxRate, MinRate <= MaxRate.
type Rating struct {
	TotalReviews int
	TotalRating  float64
	LastRating   float64
	MaxRate      float64
	MinRate      float64
}

// Average returns TotalRating / TotalReviews, or 0 when there are no reviews
// yet.
func (r Rating) Average() float64 {
	if r.TotalReviews <= 0 {
		return 0
	}
	return r.TotalRating / float64(r.TotalReviews)
}

// Valid reports whether the rating satisfies its documented invariants.
func (r Rating) Valid() bool {
	if r.TotalReviews < 0 || r.TotalRating < 0 {
		return false
	}
	if r.MinRate > r.MaxRate {
		return false
	}
	if r.LastRating < r.MinRate || r.LastRating > r.MaxRate {
		return false
	}
	return true
}
