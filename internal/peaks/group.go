package peaks

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/peakline/internal/survey"
)

// AnomalyGroup is a colocated cluster of anomalies drawn from distinct
// channels of one property group, attributed to one physical source. A merged
// composite carries the concatenated anomalies of its constituents and a
// non-empty subgroup set identifying them.
type AnomalyGroup struct {
	position      *LinePosition
	anomalies     []*Anomaly
	propertyGroup *survey.PropertyGroup
	channels      map[uuid.UUID]*LineData

	// azimuths and peakValues are parallel to anomalies. Base groups repeat
	// the line azimuth; composites concatenate their operands'.
	azimuths   []float64
	peakValues []float64

	// subgroups holds the base-group ids the composite was merged from. A
	// base group holds only its own id.
	subgroups map[int]struct{}
}

func newAnomalyGroup(
	position *LinePosition,
	anomalies []*Anomaly,
	propertyGroup *survey.PropertyGroup,
	channels map[uuid.UUID]*LineData,
	azimuths []float64,
	peakValues []float64,
	subgroups map[int]struct{},
) *AnomalyGroup {
	return &AnomalyGroup{
		position:      position,
		anomalies:     anomalies,
		propertyGroup: propertyGroup,
		channels:      channels,
		azimuths:      azimuths,
		peakValues:    peakValues,
		subgroups:     subgroups,
	}
}

// Position returns the shared line position (non-owning).
func (g *AnomalyGroup) Position() *LinePosition { return g.position }

// Anomalies returns the constituent anomalies in cluster order.
func (g *AnomalyGroup) Anomalies() []*Anomaly { return g.anomalies }

// PropertyGroup returns the channel set the group belongs to.
func (g *AnomalyGroup) PropertyGroup() *survey.PropertyGroup { return g.propertyGroup }

// Channels returns the channel-id to line-data mapping the group draws from.
func (g *AnomalyGroup) Channels() map[uuid.UUID]*LineData { return g.channels }

// Azimuth returns the line bearing the group was detected on.
func (g *AnomalyGroup) Azimuth() float64 {
	if len(g.azimuths) == 0 {
		return 0
	}
	return g.azimuths[0]
}

// FullAzimuth returns the per-anomaly azimuths (concatenated for composites).
func (g *AnomalyGroup) FullAzimuth() []float64 { return g.azimuths }

// PeakValues returns the per-anomaly values at the peaks.
func (g *AnomalyGroup) PeakValues() []float64 { return g.peakValues }

// Start returns the smallest anomaly start index in the group.
func (g *AnomalyGroup) Start() int {
	start := g.anomalies[0].Start
	for _, a := range g.anomalies[1:] {
		if a.Start < start {
			start = a.Start
		}
	}
	return start
}

// End returns the largest anomaly end index in the group.
func (g *AnomalyGroup) End() int {
	end := g.anomalies[0].End
	for _, a := range g.anomalies[1:] {
		if a.End > end {
			end = a.End
		}
	}
	return end
}

// Peaks returns the peak indices of all constituent anomalies.
func (g *AnomalyGroup) Peaks() []int {
	peaks := make([]int, len(g.anomalies))
	for i, a := range g.anomalies {
		peaks[i] = a.Peak
	}
	return peaks
}

// Subgroups returns the constituent base-group ids, ascending.
func (g *AnomalyGroup) Subgroups() []int {
	ids := make([]int, 0, len(g.subgroups))
	for id := range g.subgroups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// NumSubgroups returns the size of the subgroup set.
func (g *AnomalyGroup) NumSubgroups() int { return len(g.subgroups) }

// sharesSubgroup reports whether two groups have a constituent in common.
func (g *AnomalyGroup) sharesSubgroup(h *AnomalyGroup) bool {
	for id := range g.subgroups {
		if _, ok := h.subgroups[id]; ok {
			return true
		}
	}
	return false
}

// subgroupKey returns a stable identity for the subgroup set, used to
// deduplicate composites that cover the same constituents. The key is the
// sorted id list, so it is well defined independent of merge order.
func (g *AnomalyGroup) subgroupKey() string {
	ids := g.Subgroups()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// merge synthesizes the composite of two groups: concatenated anomalies,
// azimuths and peak values, and the union of the subgroup sets.
func (g *AnomalyGroup) merge(h *AnomalyGroup) *AnomalyGroup {
	anoms := make([]*Anomaly, 0, len(g.anomalies)+len(h.anomalies))
	anoms = append(anoms, g.anomalies...)
	anoms = append(anoms, h.anomalies...)

	az := make([]float64, 0, len(g.azimuths)+len(h.azimuths))
	az = append(az, g.azimuths...)
	az = append(az, h.azimuths...)

	pv := make([]float64, 0, len(g.peakValues)+len(h.peakValues))
	pv = append(pv, g.peakValues...)
	pv = append(pv, h.peakValues...)

	sub := make(map[int]struct{}, len(g.subgroups)+len(h.subgroups))
	for id := range g.subgroups {
		sub[id] = struct{}{}
	}
	for id := range h.subgroups {
		sub[id] = struct{}{}
	}

	return newAnomalyGroup(g.position, anoms, g.propertyGroup, g.channels, az, pv, sub)
}
