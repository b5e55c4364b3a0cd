package peaks

import "fmt"

// Params holds the detection parameters for one run. All values are caller
// supplied; Validate must pass before any computation is built from them.
type Params struct {
	// Sampling is the uniform resampling interval in spatial units.
	Sampling float64
	// Smoothing is the moving-average window (in samples) applied after
	// resampling. Zero disables smoothing.
	Smoothing int
	// MaxMigration is the maximum allowed peak-position spread, in spatial
	// units, for anomalies clustered across channels.
	MaxMigration float64
	// MinChannels is the minimum number of distinct channels required to
	// keep an anomaly group.
	MinChannels int
	// MinAmplitude rejects anomalies whose amplitude is below this percent
	// of the channel's dynamic range (0-100).
	MinAmplitude float64
	// MinValue rejects anomalies whose peak value is below this absolute
	// threshold.
	MinValue float64
	// MinWidth rejects anomalies narrower than this, in spatial units.
	MinWidth float64
	// NGroups is the number of consecutive groups merged into one composite.
	// One means no merging.
	NGroups int
	// MaxSeparation is the maximum distance between consecutive groups
	// considered for merging, in spatial units.
	MaxSeparation float64
	// FlipSign negates channel values before detection, for surveys where
	// the response of interest is negative.
	FlipSign bool
}

// DefaultParams returns the parameter set used when the caller supplies none.
func DefaultParams() Params {
	return Params{
		Sampling:      1.0,
		Smoothing:     6,
		MaxMigration:  25.0,
		MinChannels:   1,
		MinAmplitude:  1.0,
		MinValue:      0.0,
		MinWidth:      1.0,
		NGroups:       1,
		MaxSeparation: 100.0,
	}
}

// Validate checks the parameter ranges. Violations are precondition errors:
// the caller must fix its inputs, nothing is recovered locally.
func (p Params) Validate() error {
	if p.Sampling <= 0 {
		return fmt.Errorf("sampling must be positive, got %g", p.Sampling)
	}
	if p.Smoothing < 0 {
		return fmt.Errorf("smoothing must be non-negative, got %d", p.Smoothing)
	}
	if p.MaxMigration <= 0 {
		return fmt.Errorf("max_migration must be positive, got %g", p.MaxMigration)
	}
	if p.MinChannels < 1 {
		return fmt.Errorf("min_channels must be at least 1, got %d", p.MinChannels)
	}
	if p.MinAmplitude < 0 || p.MinAmplitude > 100 {
		return fmt.Errorf("min_amplitude must be a percentage in [0,100], got %g", p.MinAmplitude)
	}
	if p.MinWidth <= 0 {
		return fmt.Errorf("min_width must be positive, got %g", p.MinWidth)
	}
	if p.NGroups < 1 {
		return fmt.Errorf("n_groups must be at least 1, got %d", p.NGroups)
	}
	if p.MaxSeparation < 0 {
		return fmt.Errorf("max_separation must be non-negative, got %g", p.MaxSeparation)
	}
	return nil
}
