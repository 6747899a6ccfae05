package reputation

import "fmt"

// Profile aggregates the ratings received by one identity. AvgRating is the
// integer-truncated running average on the 1..5 scale; it reads zero until the
// first rating lands.
type Profile struct {
	AvgRating    uint64
	TotalRatings uint64
}

// Clone returns a copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return &Profile{}
	}
	clone := *p
	return &clone
}

// Review is one entry of the append-only review list kept per ratee.
type Review struct {
	AgreementID uint64
	Reviewer    [20]byte
	Rating      uint8
	Comment     string
	Timestamp   uint64
}

// Validate enforces the 1..5 rating scale.
func (r *Review) Validate() error {
	if r == nil {
		return fmt.Errorf("reputation: nil review")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// Clone returns a copy of the review.
func (r *Review) Clone() *Review {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}
