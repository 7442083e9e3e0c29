package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintStableAcrossAmenityOrder(t *testing.T) {
	a := Constraints{City: "Austin", Amenities: []string{"pool", "wifi", "pool"}}
	b := Constraints{City: "Austin", Amenities: []string{"wifi", "pool"}}

	require.NotEmpty(t, a.Fingerprint())
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintDefaultsCurrency(t *testing.T) {
	a := Constraints{City: "Austin"}
	b := Constraints{City: "Austin", Currency: "USD"}

	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintIgnoresNonToolFields(t *testing.T) {
	base := Constraints{City: "Austin", CheckIn: "2026-03-10", CheckOut: "2026-03-12", Adults: 2, Rooms: 1}
	fp := base.Fingerprint()

	// Merging an update that changes nothing tool-relevant keeps the key.
	same := base.Merge(&ConstraintsUpdate{City: ptr("Austin")})
	require.Equal(t, fp, same.Fingerprint())
}

func TestFingerprintChangesWithToolRelevantFields(t *testing.T) {
	base := Constraints{City: "Austin", CheckIn: "2026-03-10", CheckOut: "2026-03-12", Adults: 2, Rooms: 1}
	fp := base.Fingerprint()

	require.NotEqual(t, fp, base.Merge(&ConstraintsUpdate{MinStar: ptr(4.0)}).Fingerprint())
	require.NotEqual(t, fp, base.Merge(&ConstraintsUpdate{RefundablePreferred: ptr(true)}).Fingerprint())
	require.NotEqual(t, fp, base.Merge(&ConstraintsUpdate{CheckOut: ptr("2026-03-13")}).Fingerprint())
}

func TestToolRelevantSubsetOmitsAbsentOptionals(t *testing.T) {
	subset := Constraints{City: "Austin"}.ToolRelevantSubset()

	require.NotContains(t, subset, "max_price")
	require.NotContains(t, subset, "min_star")
	require.NotContains(t, subset, "amenities")
	require.NotContains(t, subset, "refundable_preferred")
	require.NotContains(t, subset, "children")
	require.Equal(t, "USD", subset["currency"])
}
