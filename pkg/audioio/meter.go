package audioio

import (
	"math"
	"sync"
)

// Meter defaults. The scale lands typical speech in the 0..~1.5 range
// the UI animation expects; the smoothing keeps the needle from jumping
// between 20ms chunks.
const (
	defaultMeterAlpha = 0.35
	defaultMeterScale = 4.0
)

// Meter tracks a smoothed RMS amplitude of the audio passing through
// it. The value is advisory: it drives the UI pulse animation and has
// no effect on the audio path.
type Meter struct {
	mu    sync.Mutex
	level float64
	alpha float64
	scale float64
}

// NewMeter creates a meter with default smoothing.
func NewMeter() *Meter {
	return &Meter{
		alpha: defaultMeterAlpha,
		scale: defaultMeterScale,
	}
}

// Observe folds a chunk into the smoothed level.
func (m *Meter) Observe(chunk AudioChunk) {
	if len(chunk.Samples) == 0 {
		return
	}

	var sum float64
	for _, s := range chunk.Samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(chunk.Samples)))

	m.mu.Lock()
	m.level += m.alpha * (rms*m.scale - m.level)
	m.mu.Unlock()
}

// Level returns the current smoothed amplitude. Always non-negative.
func (m *Meter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.level < 0 {
		return 0
	}
	return m.level
}

// Reset zeroes the level.
func (m *Meter) Reset() {
	m.mu.Lock()
	m.level = 0
	m.mu.Unlock()
}
