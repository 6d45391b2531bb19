package stage

import "github.com/kestrelsound/jukebox/pkg/pcm"

// jointStereo downmixes a 2-channel layer below into mono by
// averaging L and R, per JointStereoImpl. Any channel count other
// than 2 below is left untouched (passthrough) since the transform is
// only defined for stereo input.
type jointStereo struct {
	below      Stage
	format     pcm.Format
	bytesPer   int
	passthrough bool
}

// WrapJointStereo pushes a stereo-to-mono downmix stage onto the
// chain.
func (c *Chain) WrapJointStereo() {
	c.wrap(func(below Stage) Stage {
		f := below.Format()
		js := &jointStereo{below: below, bytesPer: f.BitsPerSample / 8}
		if f.Channels != 2 {
			js.passthrough = true
			js.format = f
			return js
		}
		out := f
		out.Channels = 1
		out.DataSize = f.DataSize / 2
		js.format = out
		return js
	})
}

func (j *jointStereo) Format() pcm.Format { return j.format }
func (j *jointStereo) Close() error       { return j.below.Close() }

func (j *jointStereo) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	if j.passthrough {
		return j.below.ReadSamples(buf, pos, max)
	}

	frames := max / j.bytesPer
	if frames == 0 {
		return 0, nil
	}
	belowPos := pos * 2
	belowMax := frames * j.bytesPer * 2
	belowBuf := make([]byte, belowMax)

	n, err := j.below.ReadSamples(belowBuf, belowPos, belowMax)
	if err != nil || n == 0 {
		return 0, err
	}

	stereoFrames := n / (j.bytesPer * 2)
	off := 0
	for i := 0; i < stereoFrames; i++ {
		l := decodeSample(belowBuf[i*2*j.bytesPer:], j.bytesPer)
		r := decodeSample(belowBuf[(i*2+1)*j.bytesPer:], j.bytesPer)
		avg := (l + r) / 2
		encodeSample(buf[off:], avg, j.bytesPer)
		off += j.bytesPer
	}
	return off, nil
}
