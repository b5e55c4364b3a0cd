package peaks

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// LinePosition converts the irregular raw stations of one line segment into a
// uniform 1-D coordinate system. It owns the resampled distance grid and the
// resampled coordinates; value arrays are interpolated onto the same grid via
// ResampleValues. Immutable after construction.
type LinePosition struct {
	sampling  float64
	smoothing int

	// locations is the cumulative arc length at each kept raw station,
	// strictly increasing (duplicate stations are dropped at construction).
	locations []float64
	// keep maps kept raw stations back to the original raw index, so value
	// arrays can be filtered consistently with the coordinates.
	keep []int

	locationsResampled []float64
	xResampled         []float64
	yResampled         []float64
}

// NewLinePosition builds the uniform coordinate system for one line segment.
// With fewer than 2 distinct raw stations the resampled grid is empty; the
// caller is responsible for checking len(Locations()) >= 2 before detection.
func NewLinePosition(x, y []float64, sampling float64, smoothing int) (*LinePosition, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("coordinate arrays must be parallel: x=%d y=%d", len(x), len(y))
	}
	if sampling <= 0 {
		return nil, fmt.Errorf("sampling must be positive, got %g", sampling)
	}
	if smoothing < 0 {
		return nil, fmt.Errorf("smoothing must be non-negative, got %d", smoothing)
	}

	p := &LinePosition{sampling: sampling, smoothing: smoothing}

	// Cumulative arc length over raw stations, dropping zero-length steps so
	// the distance axis stays strictly increasing for interpolation.
	dist := 0.0
	for i := range x {
		if i == 0 {
			p.locations = append(p.locations, 0)
			p.keep = append(p.keep, 0)
			continue
		}
		step := math.Hypot(x[i]-x[i-1], y[i]-y[i-1])
		dist += step
		if dist <= p.locations[len(p.locations)-1] {
			continue
		}
		p.locations = append(p.locations, dist)
		p.keep = append(p.keep, i)
	}

	if len(p.locations) < 2 {
		// Degenerate geometry: no usable grid. Not an error by contract.
		p.locations = nil
		p.keep = nil
		return p, nil
	}

	total := p.locations[len(p.locations)-1]
	n := int(math.Floor(total/sampling)) + 1
	p.locationsResampled = make([]float64, n)
	for i := range p.locationsResampled {
		p.locationsResampled[i] = float64(i) * sampling
	}

	xs := make([]float64, len(p.keep))
	ys := make([]float64, len(p.keep))
	for k, i := range p.keep {
		xs[k] = x[i]
		ys[k] = y[i]
	}
	var err error
	p.xResampled, err = p.interpolate(xs)
	if err != nil {
		return nil, err
	}
	p.yResampled, err = p.interpolate(ys)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Sampling returns the uniform resampling interval.
func (p *LinePosition) Sampling() float64 { return p.sampling }

// Smoothing returns the moving-average window applied by ResampleValues.
func (p *LinePosition) Smoothing() int { return p.smoothing }

// Locations returns the resampled distances along the line.
func (p *LinePosition) Locations() []float64 { return p.locationsResampled }

// X returns the x coordinates at the resampled locations.
func (p *LinePosition) X() []float64 { return p.xResampled }

// Y returns the y coordinates at the resampled locations.
func (p *LinePosition) Y() []float64 { return p.yResampled }

// interpolate maps one per-kept-station array onto the resampled grid.
func (p *LinePosition) interpolate(values []float64) ([]float64, error) {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(p.locations, values); err != nil {
		return nil, fmt.Errorf("fit interpolant: %w", err)
	}
	out := make([]float64, len(p.locationsResampled))
	last := p.locations[len(p.locations)-1]
	for i, loc := range p.locationsResampled {
		// Guard the top of the grid against float round-off past the last
		// raw station.
		if loc > last {
			loc = last
		}
		out[i] = pl.Predict(loc)
	}
	return out, nil
}

// ResampleValues interpolates one raw value array onto the resampled grid and
// returns the smoothed values alongside the unsmoothed resampled values. The
// raw array must be parallel to the raw coordinates the position was built
// from.
func (p *LinePosition) ResampleValues(raw []float64) (smoothed, rawResampled []float64, err error) {
	if len(p.locationsResampled) == 0 {
		return nil, nil, nil
	}
	if len(p.keep) > 0 && p.keep[len(p.keep)-1] >= len(raw) {
		return nil, nil, fmt.Errorf("value array has %d entries, position was built from %d stations", len(raw), p.keep[len(p.keep)-1]+1)
	}
	kept := make([]float64, len(p.keep))
	for k, i := range p.keep {
		kept[k] = raw[i]
	}
	rawResampled, err = p.interpolate(kept)
	if err != nil {
		return nil, nil, err
	}
	smoothed = movingAverage(rawResampled, p.smoothing)
	return smoothed, rawResampled, nil
}

// movingAverage applies a centered running mean of the given window size.
// Windows are clamped at the array edges. A window below 2 is a no-op copy.
func movingAverage(v []float64, window int) []float64 {
	out := make([]float64, len(v))
	if window < 2 {
		copy(out, v)
		return out
	}
	half := window / 2
	for i := range v {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(v) {
			hi = len(v)
		}
		sum := 0.0
		for _, x := range v[lo:hi] {
			sum += x
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// ComputeAzimuth returns the bearing of the line's dominant direction in
// degrees [0, 360), measured clockwise from the y axis. The direction comes
// from a least-squares fit of the resampled coordinates, oriented by the
// traverse endpoints; near-vertical lines fall back to the endpoint bearing.
func (p *LinePosition) ComputeAzimuth() float64 {
	n := len(p.xResampled)
	if n < 2 {
		return 0
	}
	dx := p.xResampled[n-1] - p.xResampled[0]
	dy := p.yResampled[n-1] - p.yResampled[0]

	span := math.Abs(dx)
	if span > 1e-9 {
		_, beta := stat.LinearRegression(p.xResampled, p.yResampled, nil, false)
		if !math.IsNaN(beta) && !math.IsInf(beta, 0) {
			dy = beta * dx
		}
	}

	az := math.Atan2(dx, dy) * 180 / math.Pi
	az = math.Mod(az+360, 360)
	return az
}
