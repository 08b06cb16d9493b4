package occupancy

// Provider identifies a micromobility feed operator. The set of real
// providers is closed; TOTAL is synthesized by the merger and never
// fetched or persisted as a raw snapshot.
type Provider string

const (
	ProviderLime Provider = "LIME"
	ProviderVeo  Provider = "VEO"
	ProviderHopp Provider = "HOPP"

	// ProviderTotal is the pseudo-provider holding the per-zone sum
	// across whichever real providers succeeded in a given hour.
	ProviderTotal Provider = "TOTAL"
)

// RealProviders lists every provider that can appear in a feed roster.
var RealProviders = []Provider{ProviderLime, ProviderVeo, ProviderHopp}

// KnownProvider reports whether p is a real (fetchable) provider.
func KnownProvider(p Provider) bool {
	for _, rp := range RealProviders {
		if p == rp {
			return true
		}
	}
	return false
}

// ZoneMetrics holds one zone's occupancy numbers for one provider and hour.
// All three derive from set cardinalities, so they are exact integers.
// Delta may be negative; density and churn cannot.
type ZoneMetrics struct {
	Density uint `json:"density"`
	Delta   int  `json:"delta"`
	Churn   uint `json:"churn"`
}

// ZoneMap maps zone id -> metrics for a single provider.
type ZoneMap map[string]ZoneMetrics

// HourSnapshot maps provider -> zone metrics for one hour, including the
// synthesized TOTAL entry.
type HourSnapshot map[Provider]ZoneMap

// DayDocument maps canonical hour stamps (see HourStamp) to that hour's
// snapshot. One document exists per (date, zone scheme) pair; it grows by
// hour across the day and shrinks only via a full backfill rebuild.
type DayDocument map[string]HourSnapshot

// IDSet is a set of vehicle ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// ZoneIDs maps zone id -> the set of vehicle ids observed in that zone.
type ZoneIDs map[string]IDSet

// Add records a vehicle id under a zone.
func (z ZoneIDs) Add(zoneID, vehicleID string) {
	set, ok := z[zoneID]
	if !ok {
		set = make(IDSet)
		z[zoneID] = set
	}
	set[vehicleID] = struct{}{}
}
