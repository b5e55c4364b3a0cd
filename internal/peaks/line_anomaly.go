package peaks

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/peakline/internal/survey"
)

// LineResult is the complete per-(line, part) output: the geometry and the
// anomaly groups of every property group, flattened.
type LineResult struct {
	LineID   int
	Part     int
	Position *LinePosition
	Groups   []*AnomalyGroup
}

// LineAnomaly drives the per-line computation: one LinePosition for the
// segment, one LineData per active channel, one LineGroup per property group.
// Each instance owns its position and line data exclusively.
type LineAnomaly struct {
	survey  *survey.Survey
	lineID  int
	part    int
	indices []int
	params  Params
}

// NewLineAnomaly prepares the computation for one line id and part. indices
// are the survey station indices of the part, in station order.
func NewLineAnomaly(s *survey.Survey, lineID, part int, indices []int, params Params) *LineAnomaly {
	return &LineAnomaly{
		survey:  s,
		lineID:  lineID,
		part:    part,
		indices: indices,
		params:  params,
	}
}

// Compute runs detection and grouping for the line part. Degenerate geometry
// (fewer than 2 usable stations) yields a nil result and no error: the caller
// skips the part.
func (la *LineAnomaly) Compute() (*LineResult, error) {
	if len(la.indices) < 2 {
		return nil, nil
	}

	x := make([]float64, len(la.indices))
	y := make([]float64, len(la.indices))
	for k, i := range la.indices {
		x[k] = la.survey.X[i]
		y[k] = la.survey.Y[i]
	}

	position, err := NewLinePosition(x, y, la.params.Sampling, la.params.Smoothing)
	if err != nil {
		return nil, fmt.Errorf("line %d part %d: %w", la.lineID, la.part, err)
	}
	if len(position.Locations()) < 2 {
		return nil, nil
	}

	lineDataset := make(map[uuid.UUID]*LineData)
	for _, uid := range la.survey.ActiveChannels() {
		ch, ok := la.survey.Channel(uid)
		if !ok {
			continue
		}
		raw := make([]float64, len(la.indices))
		for k, i := range la.indices {
			raw[k] = ch.Values[i]
		}
		data, err := NewLineData(uid, raw, position, la.params)
		if err != nil {
			return nil, fmt.Errorf("line %d part %d channel %s: %w", la.lineID, la.part, ch.Name, err)
		}
		lineDataset[uid] = data
	}

	result := &LineResult{
		LineID:   la.lineID,
		Part:     la.part,
		Position: position,
	}
	for _, pg := range la.survey.PropertyGroups {
		lineGroup := NewLineGroup(position, lineDataset, pg, la.params)
		result.Groups = append(result.Groups, lineGroup.Groups()...)
	}
	return result, nil
}
