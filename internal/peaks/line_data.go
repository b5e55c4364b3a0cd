package peaks

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// LineData wraps one channel of one line segment: the resampled smoothed
// values detection runs on, the unsmoothed resampled values kept for residual
// display, and the lazily computed anomalies. Instances are built once per
// (line segment, channel) and must not be shared across concurrent accessors:
// the anomaly list is memoized without locking.
type LineData struct {
	uid      uuid.UUID
	position *LinePosition

	values    []float64 // resampled + smoothed, sign already flipped
	rawValues []float64 // resampled only

	minAmplitude float64 // percent of dynamic range
	minValue     float64
	minWidth     float64

	anomalies []*Anomaly
	computed  bool
}

// NewLineData resamples one channel's raw values onto the position's grid and
// prepares it for detection. FlipSign is applied here so detection always
// looks for positive peaks.
func NewLineData(uid uuid.UUID, raw []float64, position *LinePosition, params Params) (*LineData, error) {
	smoothed, rawResampled, err := position.ResampleValues(raw)
	if err != nil {
		return nil, err
	}
	if params.FlipSign {
		for i := range smoothed {
			smoothed[i] = -smoothed[i]
		}
		for i := range rawResampled {
			rawResampled[i] = -rawResampled[i]
		}
	}
	return &LineData{
		uid:          uid,
		position:     position,
		values:       smoothed,
		rawValues:    rawResampled,
		minAmplitude: params.MinAmplitude,
		minValue:     params.MinValue,
		minWidth:     params.MinWidth,
	}, nil
}

// UID returns the channel identifier.
func (d *LineData) UID() uuid.UUID { return d.uid }

// Position returns the shared line position.
func (d *LineData) Position() *LinePosition { return d.position }

// Values returns the resampled, smoothed values detection runs on.
func (d *LineData) Values() []float64 { return d.values }

// RawValues returns the resampled values before smoothing.
func (d *LineData) RawValues() []float64 { return d.rawValues }

// Anomalies returns the channel's detected anomalies, computing them on first
// access.
func (d *LineData) Anomalies() []*Anomaly {
	if !d.computed {
		d.anomalies = d.detect()
		d.computed = true
	}
	return d.anomalies
}

// detect scans the smoothed sequence for peak-shaped features. Candidates are
// local maxima; each accepted anomaly consumes its [start,end] window before
// the scan continues, which keeps anomalies on one channel non-overlapping.
func (d *LineData) detect() []*Anomaly {
	v := d.values
	n := len(v)
	if n < 3 {
		return nil
	}

	dynamicRange := floats.Max(v) - floats.Min(v)
	if dynamicRange <= 0 {
		return nil
	}

	var anomalies []*Anomaly
	floor := 0 // one past the previous accepted anomaly's end
	for i := 1; i < n-1; i++ {
		if i <= floor {
			continue
		}
		if !(v[i] > 0 && v[i] >= v[i-1] && v[i] > v[i+1]) {
			continue
		}

		lowLimit := 0
		if floor > 0 {
			lowLimit = floor + 1
		}
		start := d.walkToBase(i, -1, lowLimit)
		end := d.walkToBase(i, +1, n-1)
		inflectUp := d.walkToInflection(i, -1, start)
		inflectDown := d.walkToInflection(i, +1, end)

		base := v[start]
		if v[end] < base {
			base = v[end]
		}
		amplitude := v[i] - base

		reject := 100*amplitude/dynamicRange < d.minAmplitude ||
			v[i] < d.minValue ||
			float64(end-start)*d.position.Sampling() < d.minWidth
		if reject {
			continue
		}

		anomalies = append(anomalies, &Anomaly{
			Start:       start,
			InflectUp:   inflectUp,
			Peak:        i,
			InflectDown: inflectDown,
			End:         end,
			Amplitude:   amplitude,
			channel:     d,
		})
		floor = end
		i = end
	}
	return anomalies
}

// walkToBase walks outward from the peak in the given direction until the
// value stops falling or crosses the zero baseline, and returns the last
// index still on the anomaly's flank. The walk never passes limit.
func (d *LineData) walkToBase(peak, dir, limit int) int {
	v := d.values
	j := peak
	for {
		next := j + dir
		if dir < 0 && next < limit {
			break
		}
		if dir > 0 && next > limit {
			break
		}
		if v[next] > v[j] {
			break // flank over: value rising again
		}
		j = next
		if v[j] <= 0 {
			break // baseline crossing
		}
	}
	return j
}

// walkToInflection walks outward from the peak while the curvature stays
// negative and returns the last such index, clamped to the [limit, peak]
// flank. The sample before the curvature sign change is the inflection.
func (d *LineData) walkToInflection(peak, dir, limit int) int {
	v := d.values
	j := peak
	for {
		next := j + dir
		if dir < 0 && (next < limit || next < 1) {
			break
		}
		if dir > 0 && (next > limit || next > len(v)-2) {
			break
		}
		curv := v[next+1] - 2*v[next] + v[next-1]
		if curv >= 0 {
			break
		}
		j = next
	}
	return j
}
