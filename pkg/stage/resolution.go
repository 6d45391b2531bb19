package stage

import "github.com/kestrelsound/jukebox/pkg/pcm"

// sampleResolution converts bit depth by scaling each sample by the
// ratio of the two formats' full-scale magnitudes, following
// SampleResolutionImpl's float-ratio conversion rather than a bit
// shift, which keeps the conversion correct across non-power-of-two
// bit depths (e.g. 24-bit).
type sampleResolution struct {
	below      Stage
	format     pcm.Format
	belowBytes int // bytes per sample, below layer
	myBytes    int // bytes per sample, this layer
	ratio      float64
}

// WrapSampleResolution pushes a bit-depth conversion stage onto the
// chain, reinterpreting samples at targetBits while leaving channel
// count and sample rate untouched.
func (c *Chain) WrapSampleResolution(targetBits int) {
	c.wrap(func(below Stage) Stage {
		f := below.Format()
		out := f
		out.BitsPerSample = targetBits
		out.DataSize = f.DataSize * int64(targetBits) / int64(f.BitsPerSample)
		return &sampleResolution{
			below:      below,
			format:     out,
			belowBytes: f.BitsPerSample / 8,
			myBytes:    targetBits / 8,
			ratio:      out.MaxValue() / f.MaxValue(),
		}
	})
}

func (s *sampleResolution) Format() pcm.Format { return s.format }
func (s *sampleResolution) Close() error       { return s.below.Close() }

func (s *sampleResolution) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	frames := max / (s.myBytes * s.format.Channels)
	if frames == 0 {
		return 0, nil
	}
	belowPos := pos * int64(s.belowBytes) / int64(s.myBytes)
	belowMax := frames * s.belowBytes * s.format.Channels
	belowBuf := make([]byte, belowMax)

	n, err := s.below.ReadSamples(belowBuf, belowPos, belowMax)
	if err != nil || n == 0 {
		return 0, err
	}

	samples := n / s.belowBytes
	off := 0
	for i := 0; i < samples; i++ {
		v := decodeSample(belowBuf[i*s.belowBytes:], s.belowBytes)
		out := int64(float64(v) * s.ratio)
		encodeSample(buf[off:], out, s.myBytes)
		off += s.myBytes
	}
	return off, nil
}

func decodeSample(b []byte, n int) int64 {
	switch n {
	case 1:
		return int64(b[0]) - 128
	case 2:
		return int64(int16(uint16(b[0]) | uint16(b[1])<<8))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= -1 << 24
		}
		return int64(v)
	default:
		return int64(int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24))
	}
}

func encodeSample(b []byte, v int64, n int) {
	switch n {
	case 1:
		b[0] = byte(v + 128)
	case 2:
		u := uint16(int16(v))
		b[0] = byte(u)
		b[1] = byte(u >> 8)
	case 3:
		u := uint32(v)
		b[0] = byte(u)
		b[1] = byte(u >> 8)
		b[2] = byte(u >> 16)
	default:
		u := uint32(v)
		b[0] = byte(u)
		b[1] = byte(u >> 8)
		b[2] = byte(u >> 16)
		b[3] = byte(u >> 24)
	}
}
