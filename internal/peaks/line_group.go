package peaks

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/banshee-data/peakline/internal/survey"
)

// LineGroup computes the anomaly groups of one (line segment, property group)
// pair: cross-channel clustering of colocated anomalies, then, when NGroups
// is above one, combinatorial merging of consecutive groups into composites.
// The result is memoized on first access; instances must not be shared across
// concurrent accessors.
type LineGroup struct {
	position      *LinePosition
	lineDataset   map[uuid.UUID]*LineData
	propertyGroup *survey.PropertyGroup
	params        Params

	channels map[uuid.UUID]*LineData
	groups   []*AnomalyGroup
	computed bool
}

// NewLineGroup prepares the clustering computation. lineDataset maps channel
// ids to their per-line data; only channels belonging to the property group
// participate.
func NewLineGroup(
	position *LinePosition,
	lineDataset map[uuid.UUID]*LineData,
	propertyGroup *survey.PropertyGroup,
	params Params,
) *LineGroup {
	return &LineGroup{
		position:      position,
		lineDataset:   lineDataset,
		propertyGroup: propertyGroup,
		params:        params,
	}
}

// Position returns the shared line position.
func (lg *LineGroup) Position() *LinePosition { return lg.position }

// PropertyGroup returns the channel set being clustered.
func (lg *LineGroup) PropertyGroup() *survey.PropertyGroup { return lg.propertyGroup }

// Channels returns the property group's channels present in the line dataset,
// keyed by channel id.
func (lg *LineGroup) Channels() map[uuid.UUID]*LineData {
	if lg.channels == nil {
		lg.channels = make(map[uuid.UUID]*LineData)
		for _, uid := range lg.propertyGroup.Channels {
			if data, ok := lg.lineDataset[uid]; ok {
				lg.channels[uid] = data
			}
		}
	}
	return lg.channels
}

// Groups returns the computed anomaly groups (base clusters, or composites
// when NGroups > 1), computing them on first access.
func (lg *LineGroup) Groups() []*AnomalyGroup {
	if !lg.computed {
		base := lg.compute()
		lg.groups = lg.groupNGroups(base)
		lg.computed = true
	}
	return lg.groups
}

// channelSubset returns the property group's line data in the group's channel
// order. The order fixes the channel indices used by gap rejection and the
// cluster scan, so it must be stable.
func (lg *LineGroup) channelSubset() []*LineData {
	channels := lg.Channels()
	subset := make([]*LineData, 0, len(channels))
	for _, uid := range lg.propertyGroup.Channels {
		if data, ok := channels[uid]; ok {
			subset = append(subset, data)
		}
	}
	return subset
}

// anomalyAttributes flattens all channels' anomalies into parallel arrays:
// the anomalies themselves, their channel index within the property group,
// their peak position along the line and their peak value. The flattening is
// channel-major; the cluster scan depends on this exact order.
func (lg *LineGroup) anomalyAttributes(subset []*LineData) (anomalies []*Anomaly, channels []int, positions, values []float64) {
	locs := lg.position.Locations()
	for chIdx, data := range subset {
		vals := data.Values()
		for _, a := range data.Anomalies() {
			anomalies = append(anomalies, a)
			channels = append(channels, chIdx)
			positions = append(positions, locs[a.Peak])
			values = append(values, vals[a.Peak])
		}
	}
	return anomalies, channels, positions, values
}

// nearPeaks returns the indices of all anomalies whose peak lies within the
// migration distance of anomaly ind, after two refinements: channel-gap
// rejection (a gap of more than 2 between sorted channel indices splits the
// cluster, keeping only channels up to the gap) and nearest-duplicate
// resolution (a channel contributing several near anomalies keeps only the
// closest one).
func (lg *LineGroup) nearPeaks(ind int, channels []int, positions []float64) []int {
	var near []int
	for j := range positions {
		if math.Abs(positions[ind]-positions[j]) < lg.params.MaxMigration {
			near = append(near, j)
		}
	}

	// Channel-gap rejection: truncate at the first gap > 2.
	gates := uniqueGates(channels, near)
	for i := 0; i+1 < len(gates); i++ {
		if gates[i+1]-gates[i] > 2 {
			cutoff := gates[i]
			kept := make([]int, 0, len(near))
			for _, j := range near {
				if channels[j] <= cutoff {
					kept = append(kept, j)
				}
			}
			near = kept
			break
		}
	}

	// Nearest-duplicate resolution, one channel at a time in channel order.
	counts := make(map[int]int)
	for _, j := range near {
		counts[channels[j]]++
	}
	gates = uniqueGates(channels, near)
	for _, gate := range gates {
		if counts[gate] < 2 {
			continue
		}
		best := -1
		bestDist := math.Inf(1)
		for _, j := range near {
			if channels[j] != gate {
				continue
			}
			if d := math.Abs(positions[ind] - positions[j]); d < bestDist {
				bestDist = d
				best = j
			}
		}
		kept := make([]int, 0, len(near))
		for _, j := range near {
			if channels[j] != gate || j == best {
				kept = append(kept, j)
			}
		}
		near = kept
	}

	return near
}

// uniqueGates returns the distinct channel indices present in the selection,
// ascending.
func uniqueGates(channels []int, selection []int) []int {
	seen := make(map[int]bool)
	var gates []int
	for _, j := range selection {
		if !seen[channels[j]] {
			seen[channels[j]] = true
			gates = append(gates, channels[j])
		}
	}
	sort.Ints(gates)
	return gates
}

// compute runs the base clustering: anomalies are visited in channel-major
// order, each unassigned anomaly seeds a candidate cluster of near peaks, and
// clusters covering at least MinChannels distinct channels become groups.
// The seed order is part of the observable behaviour and must not be changed
// to a proximity sort.
func (lg *LineGroup) compute() []*AnomalyGroup {
	if len(lg.position.Locations()) < 2 {
		return nil
	}
	azimuth := lg.position.ComputeAzimuth()
	subset := lg.channelSubset()
	if len(subset) == 0 {
		return nil
	}

	anomalies, channels, positions, values := lg.anomalyAttributes(subset)

	var groups []*AnomalyGroup
	groupIDs := make([]int, len(anomalies))
	for i := range groupIDs {
		groupIDs[i] = -1
	}

	groupID := -1
	for ind := range anomalies {
		if groupIDs[ind] != -1 {
			continue
		}
		groupID++

		near := lg.nearPeaks(ind, channels, positions)
		if len(near) == 0 || len(uniqueGates(channels, near)) < lg.params.MinChannels {
			// Candidate discarded: not an error, the scan moves on.
			continue
		}

		nearAnomalies := make([]*Anomaly, len(near))
		nearValues := make([]float64, len(near))
		azimuths := make([]float64, len(near))
		for k, j := range near {
			groupIDs[j] = groupID
			nearAnomalies[k] = anomalies[j]
			nearValues[k] = values[j]
			azimuths[k] = azimuth
		}

		groups = append(groups, newAnomalyGroup(
			lg.position,
			nearAnomalies,
			lg.propertyGroup,
			lg.Channels(),
			azimuths,
			nearValues,
			map[int]struct{}{groupID: {}},
		))
	}
	return groups
}

// groupNGroups merges base groups into composites of exactly NGroups
// constituents lying within MaxSeparation of each other. Each pass grows
// composite size by one, so composites of the final size appear after
// NGroups-1 passes; partial composites feed later passes but are filtered
// from the output.
func (lg *LineGroup) groupNGroups(base []*AnomalyGroup) []*AnomalyGroup {
	n := lg.params.NGroups
	if n <= 1 || len(base) == 0 {
		return base
	}

	delta := int(lg.params.MaxSeparation / lg.position.Sampling())

	working := make([]*AnomalyGroup, len(base))
	copy(working, base)
	seen := make(map[string]bool, len(working))
	for _, g := range working {
		seen[g.subgroupKey()] = true
	}

	for iter := 0; iter < n-1; iter++ {
		sort.SliceStable(working, func(i, j int) bool {
			return working[i].Start() < working[j].Start()
		})
		starts := make([]int, len(working))
		ends := make([]int, len(working))
		for i, g := range working {
			starts[i] = g.Start()
			ends[i] = g.End()
		}
		// Prefix-max of ends in start order: monotone, so the candidate
		// window's lower bound is binary-searchable even though raw ends
		// are not sorted under nesting.
		maxEnds := make([]int, len(ends))
		for i, e := range ends {
			if i > 0 && maxEnds[i-1] > e {
				maxEnds[i] = maxEnds[i-1]
			} else {
				maxEnds[i] = e
			}
		}

		var added []*AnomalyGroup
		for _, g := range working {
			// Candidates must end at or after g.Start()-delta and start at
			// or before g.End()+delta.
			lo := sort.SearchInts(maxEnds, g.Start()-delta)
			hi := sort.SearchInts(starts, g.End()+delta+1)
			for h := lo; h < hi; h++ {
				other := working[h]
				if ends[h] < g.Start()-delta {
					continue
				}
				if g.sharesSubgroup(other) {
					continue
				}
				if g.NumSubgroups()+other.NumSubgroups() > n {
					continue
				}
				merged := g.merge(other)
				key := merged.subgroupKey()
				if seen[key] {
					continue
				}
				seen[key] = true
				added = append(added, merged)
			}
		}
		working = append(working, added...)
	}

	// Keep only composites of exactly n constituents, one per subgroup set.
	emitted := make(map[string]bool)
	var out []*AnomalyGroup
	for _, g := range working {
		if g.NumSubgroups() != n {
			continue
		}
		key := g.subgroupKey()
		if emitted[key] {
			continue
		}
		emitted[key] = true
		out = append(out, g)
	}
	return out
}
