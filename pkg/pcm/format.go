// Package pcm holds the small value types shared by every container,
// stage, and sink: the PCM format descriptor and the handful of
// derived quantities (frame size, silence level) that every layer of
// the pipeline needs to agree on.
package pcm

import "fmt"

// Format describes the layout of a raw PCM stream: how many channels
// it has, the sample rate, the bit depth, and the total size in bytes
// of the decoded data (the value a BaseDecoder reports for a fully
// decoded/seekable source; 0 means unknown/streaming).
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int64
}

// FrameSize returns the number of bytes occupied by one sample across
// all channels (e.g. 4 for 16-bit stereo).
func (f Format) FrameSize() int {
	return f.Channels * (f.BitsPerSample / 8)
}

// SilenceLevel returns the sample value that represents silence for
// this bit depth: 0 for signed formats (16/24/32-bit), and the
// midpoint (128) for 8-bit unsigned PCM, matching the convention used
// throughout the decorator chain in the original decoder design.
func (f Format) SilenceLevel() int {
	if f.BitsPerSample == 8 {
		return 128
	}
	return 0
}

// MaxValue returns the largest magnitude representable at this bit
// depth for a sample measured from the silence level (127 for 8-bit
// unsigned, 2^(bits-1)-1 for the signed formats), used by stages
// (SampleResolution, Distortion) that need to scale samples relative
// to full scale.
func (f Format) MaxValue() float64 {
	if f.BitsPerSample == 8 {
		return 127
	}
	return float64(int64(1)<<(f.BitsPerSample-1) - 1)
}

func (f Format) String() string {
	return fmt.Sprintf("%d ch, %d Hz, %d-bit, %d bytes", f.Channels, f.SampleRate, f.BitsPerSample, f.DataSize)
}

// BytesPerSecond returns the number of PCM bytes per second of audio
// at this format, used to translate fade/seek durations into byte
// offsets.
func (f Format) BytesPerSecond() int64 {
	return int64(f.SampleRate) * int64(f.FrameSize())
}
