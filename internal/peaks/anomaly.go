package peaks

// Anomaly is one detected peak-shaped feature on one channel. All indices
// point into the channel's resampled sequence and satisfy
// Start <= InflectUp <= Peak <= InflectDown <= End. Immutable once created.
type Anomaly struct {
	Start       int
	InflectUp   int
	Peak        int
	InflectDown int
	End         int

	// Amplitude is the peak-to-base height of the feature in value units.
	Amplitude float64

	channel *LineData
}

// Channel returns the LineData the anomaly was detected on. The reference is
// non-owning: the LineData outlives the anomaly's use.
func (a *Anomaly) Channel() *LineData { return a.channel }

// Width returns the spatial extent of the anomaly.
func (a *Anomaly) Width(sampling float64) float64 {
	return float64(a.End-a.Start) * sampling
}
