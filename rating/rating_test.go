package rating

import "testing"

func TestAverageZeroReviews(t *testing.T) {
	r := Rating{}
	if avg := r.Average(); avg != 0 {
		t.Fatalf("expected 0 average with no reviews, got %v", avg)
	}
}

func TestAverageWithReviews(t *testing.T) {
	r := Rating{TotalReviews: 4, TotalRating: 18, LastRating: 5, MinRate: 1, MaxRate: 5}
	if avg := r.Average(); avg != 4.5 {
		t.Fatalf("expected average 4.5, got %v", avg)
	}
}

func TestValidRejectsOutOfBoundsLastRating(t *testing.T) {
	r := Rating{TotalReviews: 1, TotalRating: 6, LastRating: 6, MinRate: 1, MaxRate: 5}
	if r.Valid() {
		t.Fatal("expected invalid rating when LastRating exceeds MaxRate")
	}
}

func TestValidRejectsInvertedBounds(t *testing.T) {
	r := Rating{MinRate: 5, MaxRate: 1, LastRating: 3}
	if r.Valid() {
		t.Fatal("expected invalid rating when MinRate > MaxRate")
	}
}
