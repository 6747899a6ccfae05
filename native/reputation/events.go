package reputation

import (
	"encoding/hex"
	"strconv"

	"leasechain/core/types"
)

// EventTypeRated is emitted when a review lands on a profile.
const EventTypeRated = "reputation.rated"

// NewRatedEvent returns the canonical payload for a recorded rating.
func NewRatedEvent(ratee [20]byte, review *Review, profile *Profile) *types.Event {
	attrs := make(map[string]string)
	attrs["ratee"] = hex.EncodeToString(ratee[:])
	if review != nil {
		attrs["agreementId"] = strconv.FormatUint(review.AgreementID, 10)
		attrs["reviewer"] = hex.EncodeToString(review.Reviewer[:])
		attrs["rating"] = strconv.FormatUint(uint64(review.Rating), 10)
	}
	if profile != nil {
		attrs["avgRating"] = strconv.FormatUint(profile.AvgRating, 10)
		attrs["totalRatings"] = strconv.FormatUint(profile.TotalRatings, 10)
	}
	return &types.Event{Type: EventTypeRated, Attributes: attrs}
}
