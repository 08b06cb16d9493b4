package occupancy

// MergeHour combines the per-provider zone maps for one hour into an
// HourSnapshot and synthesizes the TOTAL pseudo-provider by summing
// density, delta and churn per zone across the real providers present.
//
// TOTAL is recomputed fresh every hour from whichever providers actually
// produced data; it is not a running total, and its membership can vary
// hour to hour when a provider's feed is down.
func MergeHour(perProvider map[Provider]ZoneMap) HourSnapshot {
	snapshot := make(HourSnapshot, len(perProvider)+1)
	total := make(ZoneMap)

	for provider, zones := range perProvider {
		snapshot[provider] = zones
		for zoneID, m := range zones {
			sum := total[zoneID]
			sum.Density += m.Density
			sum.Delta += m.Delta
			sum.Churn += m.Churn
			total[zoneID] = sum
		}
	}

	snapshot[ProviderTotal] = total
	return snapshot
}
