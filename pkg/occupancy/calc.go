package occupancy

// ComputeZoneMetrics computes density, delta and churn for every zone that
// appears in either the current hour's vehicle-id sets or the previous
// hour's baseline.
//
// A nil previous means no baseline exists for this (provider, hour): delta
// is 0 unconditionally rather than density-0, so a cold start never shows
// up as a spike. Churn is computed only when the provider is churn-capable
// AND a baseline exists; it counts vehicles that left plus vehicles that
// arrived by identity, which is why a zone can have churn > 0 with
// delta == 0.
func ComputeZoneMetrics(current, previous ZoneIDs, churnEnabled bool) ZoneMap {
	zones := make(ZoneMap, len(current))
	hasBaseline := previous != nil

	for zoneID, currIDs := range current {
		m := ZoneMetrics{Density: uint(len(currIDs))}
		if hasBaseline {
			prevIDs := previous[zoneID]
			m.Delta = len(currIDs) - len(prevIDs)
			if churnEnabled {
				m.Churn = symmetricDiff(prevIDs, currIDs)
			}
		}
		zones[zoneID] = m
	}

	if !hasBaseline {
		return zones
	}

	// Zones that emptied out this hour still report a negative delta.
	for zoneID, prevIDs := range previous {
		if _, ok := current[zoneID]; ok {
			continue
		}
		m := ZoneMetrics{Density: 0, Delta: -len(prevIDs)}
		if churnEnabled {
			m.Churn = uint(len(prevIDs))
		}
		zones[zoneID] = m
	}

	return zones
}

// symmetricDiff counts ids present in exactly one of the two sets.
func symmetricDiff(prev, curr IDSet) uint {
	var n uint
	for id := range prev {
		if _, ok := curr[id]; !ok {
			n++
		}
	}
	for id := range curr {
		if _, ok := prev[id]; !ok {
			n++
		}
	}
	return n
}
