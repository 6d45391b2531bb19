package stage

import "github.com/kestrelsound/jukebox/pkg/pcm"

// fade applies a linear fade-in over the first fadeInBytes of the
// stream and a linear fade-out over the last fadeOutBytes, scaling
// samples around the format's silence level, following FadeImpl.
// Fade-out requires a known DataSize; if the layer below doesn't
// report one (streaming/sequential formats) fade-out is skipped.
type fade struct {
	below    Stage
	format   pcm.Format
	bytesPer int
	channels int

	fadeInBytes  int64
	fadeOutBytes int64
	dataSize     int64
}

// WrapFade pushes a linear fade-in/fade-out stage onto the chain.
func (c *Chain) WrapFade(fadeInSec, fadeOutSec float64) {
	c.wrap(func(below Stage) Stage {
		f := below.Format()
		frameSize := int64(f.FrameSize())
		return &fade{
			below:        below,
			format:       f,
			bytesPer:     f.BitsPerSample / 8,
			channels:     f.Channels,
			fadeInBytes:  int64(fadeInSec*float64(f.SampleRate)) * frameSize,
			fadeOutBytes: int64(fadeOutSec*float64(f.SampleRate)) * frameSize,
			dataSize:     f.DataSize,
		}
	})
}

func (fd *fade) Format() pcm.Format { return fd.format }
func (fd *fade) Close() error       { return fd.below.Close() }

func (fd *fade) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	n, err := fd.below.ReadSamples(buf, pos, max)
	if err != nil || n == 0 {
		return n, err
	}

	frameBytes := fd.bytesPer * fd.channels
	for off := 0; off+frameBytes <= n; off += frameBytes {
		abs := pos + int64(off)
		scale := fd.scaleAt(abs)
		if scale == 1 {
			continue
		}
		for ch := 0; ch < fd.channels; ch++ {
			s := off + ch*fd.bytesPer
			// decodeSample values are already measured from the silence level.
			v := float64(decodeSample(buf[s:], fd.bytesPer))
			y := v * scale
			encodeSample(buf[s:], int64(y), fd.bytesPer)
		}
	}
	return n, nil
}

func (fd *fade) scaleAt(pos int64) float64 {
	scale := 1.0
	if fd.fadeInBytes > 0 && pos < fd.fadeInBytes {
		scale = float64(pos) / float64(fd.fadeInBytes)
	}
	if fd.dataSize > 0 && fd.fadeOutBytes > 0 {
		fadeOutStart := fd.dataSize - fd.fadeOutBytes
		if pos >= fadeOutStart {
			remaining := fd.dataSize - pos
			if remaining < 0 {
				remaining = 0
			}
			outScale := float64(remaining) / float64(fd.fadeOutBytes)
			if outScale < scale {
				scale = outScale
			}
		}
	}
	if scale < 0 {
		scale = 0
	}
	if scale > 1 {
		scale = 1
	}
	return scale
}
