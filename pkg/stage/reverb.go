package stage

import "github.com/kestrelsound/jukebox/pkg/pcm"

// reverb sums several comb-filter delay lines with geometrically
// spaced lengths, following ReverbImpl: output = (x + decay *
// sum(D_i[p_i])) / (1 + numDelays*decay), and that combined sample is
// written back into every delay line's current position (not a
// per-line feedback loop). Delay state is reset whenever playback
// restarts at position 0, matching the original's behavior.
type reverb struct {
	below    Stage
	format   pcm.Format
	bytesPer int
	channels int
	decay    float64

	expectedPos int64
	lines       []combLine
}

type combLine struct {
	buf    []float64 // per-channel circular buffer, interleaved
	length int
	pos    int
}

// WrapReverb pushes a comb-filter reverb stage onto the chain.
// baseDelayMs is the shortest delay line's length in milliseconds;
// each subsequent line is roughly twice as long. decay in [0,1)
// controls how quickly reflections die out. numDelays sets how many
// comb lines are summed; values less than 1 are clamped to 1.
func (c *Chain) WrapReverb(baseDelayMs float64, decay float64, numDelays int) {
	if numDelays < 1 {
		numDelays = 1
	}
	c.wrap(func(below Stage) Stage {
		f := below.Format()
		r := &reverb{
			below:    below,
			format:   f,
			bytesPer: f.BitsPerSample / 8,
			channels: f.Channels,
			decay:    decay,
		}
		for i := 0; i < numDelays; i++ {
			ms := baseDelayMs * float64(int(1)<<uint(i))
			length := int(ms * float64(f.SampleRate) / 1000)
			if length < 1 {
				length = 1
			}
			r.lines = append(r.lines, combLine{
				buf:    make([]float64, length*f.Channels),
				length: length,
			})
		}
		return r
	})
}

func (r *reverb) Format() pcm.Format { return r.format }
func (r *reverb) Close() error       { return r.below.Close() }

func (r *reverb) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	if pos == 0 && r.expectedPos != 0 {
		for i := range r.lines {
			for j := range r.lines[i].buf {
				r.lines[i].buf[j] = 0
			}
			r.lines[i].pos = 0
		}
	}

	n, err := r.below.ReadSamples(buf, pos, max)
	if err != nil || n == 0 {
		return n, err
	}

	frameBytes := r.bytesPer * r.channels
	denom := 1 + float64(len(r.lines))*r.decay

	for off := 0; off+frameBytes <= n; off += frameBytes {
		for ch := 0; ch < r.channels; ch++ {
			s := off + ch*r.bytesPer
			dry := float64(decodeSample(buf[s:], r.bytesPer))
			sum := 0.0
			for li := range r.lines {
				l := &r.lines[li]
				idx := l.pos*r.channels + ch
				sum += l.buf[idx]
			}
			combined := (dry + r.decay*sum) / denom
			for li := range r.lines {
				l := &r.lines[li]
				idx := l.pos*r.channels + ch
				l.buf[idx] = combined
			}
			encodeSample(buf[s:], int64(combined), r.bytesPer)
		}
		for li := range r.lines {
			r.lines[li].pos = (r.lines[li].pos + 1) % r.lines[li].length
		}
	}

	r.expectedPos = pos + int64(n)
	return n, nil
}
