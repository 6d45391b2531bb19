package stage

import (
	"math"

	"github.com/kestrelsound/jukebox/pkg/pcm"
)

// distortion applies a tanh soft-clip around the format's silence
// level: y = tanh(gain*x)/tanh(gain), following DistortionImpl. Format
// and byte count are unchanged; only sample values are rewritten.
type distortion struct {
	below    Stage
	format   pcm.Format
	gain     float64
	bytesPer int
	maxValue float64
	norm     float64
}

// WrapDistortion pushes a soft-clip distortion stage onto the chain.
// gain must be > 0; higher gain drives samples harder into the clip.
func (c *Chain) WrapDistortion(gain float64) {
	c.wrap(func(below Stage) Stage {
		f := below.Format()
		return &distortion{
			below:    below,
			format:   f,
			gain:     gain,
			bytesPer: f.BitsPerSample / 8,
			maxValue: f.MaxValue(),
			norm:     math.Tanh(gain),
		}
	})
}

func (d *distortion) Format() pcm.Format { return d.format }
func (d *distortion) Close() error       { return d.below.Close() }

func (d *distortion) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	n, err := d.below.ReadSamples(buf, pos, max)
	if err != nil || n == 0 {
		return n, err
	}

	for off := 0; off+d.bytesPer <= n; off += d.bytesPer {
		v := decodeSample(buf[off:], d.bytesPer)
		x := float64(v) / d.maxValue
		y := math.Tanh(d.gain*x) / d.norm
		encodeSample(buf[off:], int64(y*d.maxValue), d.bytesPer)
	}
	return n, nil
}
