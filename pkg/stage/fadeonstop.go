package stage

import "github.com/kestrelsound/jukebox/pkg/pcm"

// fadeOnStop is installed on top of a chain by engine.Sound.FadeOnStop
// (Sound.Stop never installs it) to fade out the last fadeBytes
// of audio starting at truncAt — the playback position at the moment
// FadeOnStop was called — and to truncate the reported data size there,
// following FadeOnStopImpl's trunc_at behavior. Unlike fade, the
// fade-out window is anchored to truncAt rather than to the end of
// the stream, since the stream may be arbitrarily long or looping.
type fadeOnStop struct {
	below    Stage
	format   pcm.Format
	bytesPer int
	channels int

	truncAt   int64
	fadeBytes int64
}

// WrapFadeOnStop pushes a fade-out-and-truncate stage onto the chain.
// truncAt is the byte position playback had reached; seconds is the
// fade-out duration.
func (c *Chain) WrapFadeOnStop(truncAt int64, seconds float64) {
	c.wrap(func(below Stage) Stage {
		f := below.Format()
		frameSize := int64(f.FrameSize())
		fadeBytes := int64(seconds*float64(f.SampleRate)) * frameSize
		out := f
		end := truncAt + fadeBytes
		if f.DataSize > 0 && end > f.DataSize {
			end = f.DataSize
		}
		out.DataSize = end
		return &fadeOnStop{
			below:     below,
			format:    out,
			bytesPer:  f.BitsPerSample / 8,
			channels:  f.Channels,
			truncAt:   truncAt,
			fadeBytes: fadeBytes,
		}
	})
}

func (fo *fadeOnStop) Format() pcm.Format { return fo.format }
func (fo *fadeOnStop) Close() error       { return fo.below.Close() }

func (fo *fadeOnStop) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	if pos >= fo.format.DataSize {
		return 0, nil
	}
	if int64(max) > fo.format.DataSize-pos {
		max = int(fo.format.DataSize - pos)
	}

	n, err := fo.below.ReadSamples(buf, pos, max)
	if err != nil || n == 0 {
		return n, err
	}

	frameBytes := fo.bytesPer * fo.channels
	for off := 0; off+frameBytes <= n; off += frameBytes {
		abs := pos + int64(off)
		if abs < fo.truncAt {
			continue
		}
		remaining := fo.truncAt + fo.fadeBytes - abs
		scale := float64(remaining) / float64(fo.fadeBytes)
		if scale < 0 {
			scale = 0
		}
		if scale > 1 {
			scale = 1
		}
		for ch := 0; ch < fo.channels; ch++ {
			s := off + ch*fo.bytesPer
			// decodeSample values are already measured from the silence level.
			v := float64(decodeSample(buf[s:], fo.bytesPer))
			y := v * scale
			encodeSample(buf[s:], int64(y), fo.bytesPer)
		}
	}
	return n, nil
}
