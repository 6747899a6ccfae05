package state

import (
	"fmt"

	"leasechain/native/reputation"
)

const (
	profileKeyFmt = "reputation/profile/%x"
	reviewsKeyFmt = "reputation/reviews/%x"
)

type storedProfile struct {
	AvgRating    uint64
	TotalRatings uint64
}

type storedReview struct {
	AgreementID uint64
	Reviewer    [20]byte
	Rating      uint8
	Comment     string
	Timestamp   uint64
}

// ProfilePut persists the aggregate reputation record for an identity.
func (m *Manager) ProfilePut(addr [20]byte, profile *reputation.Profile) error {
	if profile == nil {
		return fmt.Errorf("state: nil profile")
	}
	stored := storedProfile{AvgRating: profile.AvgRating, TotalRatings: profile.TotalRatings}
	return m.KVPut([]byte(fmt.Sprintf(profileKeyFmt, addr)), stored)
}

// ProfileGet loads the aggregate reputation record for an identity.
func (m *Manager) ProfileGet(addr [20]byte) (*reputation.Profile, bool, error) {
	var stored storedProfile
	ok, err := m.KVGet([]byte(fmt.Sprintf(profileKeyFmt, addr)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &reputation.Profile{AvgRating: stored.AvgRating, TotalRatings: stored.TotalRatings}, true, nil
}

// ReviewAppend appends a review to the ratee's append-only list.
func (m *Manager) ReviewAppend(addr [20]byte, review *reputation.Review) error {
	if review == nil {
		return fmt.Errorf("state: nil review")
	}
	key := []byte(fmt.Sprintf(reviewsKeyFmt, addr))
	var stored []storedReview
	if _, err := m.KVGet(key, &stored); err != nil {
		return err
	}
	stored = append(stored, storedReview{
		AgreementID: review.AgreementID,
		Reviewer:    review.Reviewer,
		Rating:      review.Rating,
		Comment:     review.Comment,
		Timestamp:   review.Timestamp,
	})
	return m.KVPut(key, stored)
}

// Reviews returns the ratee's review list in append order.
func (m *Manager) Reviews(addr [20]byte) ([]*reputation.Review, error) {
	var stored []storedReview
	if _, err := m.KVGet([]byte(fmt.Sprintf(reviewsKeyFmt, addr)), &stored); err != nil {
		return nil, err
	}
	reviews := make([]*reputation.Review, 0, len(stored))
	for _, entry := range stored {
		reviews = append(reviews, &reputation.Review{
			AgreementID: entry.AgreementID,
			Reviewer:    entry.Reviewer,
			Rating:      entry.Rating,
			Comment:     entry.Comment,
			Timestamp:   entry.Timestamp,
		})
	}
	return reviews, nil
}
