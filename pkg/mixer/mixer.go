// Package mixer implements the process-wide master volume (L4'):
// a single scaling factor applied on top of every Sound's own volume,
// independent of any individual playback session.
package mixer

import (
	"math"
	"sync/atomic"
)

// Mixer holds one atomically-updated master volume, read by every
// Sound's producer goroutine on each write and written by at most one
// caller at a time (typically a UI volume slider or CLI flag).
type Mixer struct {
	volume atomic.Uint64 // float64 bits, via math.Float64bits
}

// New returns a Mixer at full volume (1.0).
func New() *Mixer {
	m := &Mixer{}
	m.SetVolume(1.0)
	return m
}

// SetVolume sets the master volume, clamped to [0, 1].
func (m *Mixer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	m.volume.Store(math.Float64bits(v))
}

// Volume returns the current master volume.
func (m *Mixer) Volume() float64 {
	return math.Float64frombits(m.volume.Load())
}

// Default is the process-wide Mixer every Sound applies on top of its
// own per-instance volume, mirroring spec.md's single shared Mixer
// instance.
var Default = New()
