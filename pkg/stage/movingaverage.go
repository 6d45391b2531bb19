package stage

import "github.com/kestrelsound/jukebox/pkg/pcm"

// movingAverage is a leaky integrator low-pass per channel:
// avg += (x - avg) / window, following MovingAverageImpl. Each
// channel keeps its own running accumulator so stereo content isn't
// smeared across channels.
type movingAverage struct {
	below    Stage
	format   pcm.Format
	window   float64
	bytesPer int
	channels int

	expectedPos int64
	accum       []float64
}

// WrapMovingAverage pushes a leaky-integrator smoothing stage onto the
// chain; window is the integrator's time constant in samples (larger
// windows smooth more aggressively).
func (c *Chain) WrapMovingAverage(window int) {
	c.wrap(func(below Stage) Stage {
		f := below.Format()
		return &movingAverage{
			below:    below,
			format:   f,
			window:   float64(window),
			bytesPer: f.BitsPerSample / 8,
			channels: f.Channels,
			accum:    make([]float64, f.Channels),
		}
	})
}

func (m *movingAverage) Format() pcm.Format { return m.format }
func (m *movingAverage) Close() error       { return m.below.Close() }

func (m *movingAverage) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	if pos != m.expectedPos {
		for i := range m.accum {
			m.accum[i] = 0
		}
	}

	n, err := m.below.ReadSamples(buf, pos, max)
	if err != nil || n == 0 {
		return n, err
	}

	frameBytes := m.bytesPer * m.channels
	for off := 0; off+frameBytes <= n; off += frameBytes {
		for ch := 0; ch < m.channels; ch++ {
			s := off + ch*m.bytesPer
			x := float64(decodeSample(buf[s:], m.bytesPer))
			m.accum[ch] += (x - m.accum[ch]) / m.window
			encodeSample(buf[s:], int64(m.accum[ch]), m.bytesPer)
		}
	}

	m.expectedPos = pos + int64(n)
	return n, nil
}
