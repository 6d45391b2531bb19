package stage

import (
	"testing"

	"github.com/kestrelsound/jukebox/pkg/pcm"
)

// fakeBase is a minimal container.BaseDecoder that produces a fixed
// 16-bit tone pattern on the given number of channels, used to exercise every stage without
// decoding a real file.
type fakeBase struct {
	format pcm.Format
	data   []byte
}

func newFakeBase(channels int, frames int) *fakeBase {
	f := pcm.Format{Channels: channels, SampleRate: 8000, BitsPerSample: 16, DataSize: int64(frames * channels * 2)}
	data := make([]byte, frames*channels*2)
	for i := 0; i < frames*channels; i++ {
		v := int16((i%200 - 100) * 100)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return &fakeBase{format: f, data: data}
}

func (b *fakeBase) Format() pcm.Format { return b.format }

func (b *fakeBase) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	if pos >= int64(len(b.data)) {
		return 0, nil
	}
	end := pos + int64(max)
	if end > int64(len(b.data)) {
		end = int64(len(b.data))
	}
	return copy(buf, b.data[pos:end]), nil
}

func (b *fakeBase) Close() error { return nil }

func TestPeelInvertsWrap(t *testing.T) {
	base := newFakeBase(2, 100)
	c := NewChain(base)
	depthBefore := c.Depth()

	c.WrapJointStereo()
	if c.Depth() != depthBefore+1 {
		t.Fatalf("expected depth %d after wrap, got %d", depthBefore+1, c.Depth())
	}
	if c.Format().Channels != 1 {
		t.Fatalf("expected mono format after joint-stereo wrap, got %d channels", c.Format().Channels)
	}

	c.Peel()
	if c.Depth() != depthBefore {
		t.Fatalf("expected depth %d after peel, got %d", depthBefore, c.Depth())
	}
	if c.Format().Channels != 2 {
		t.Fatalf("expected stereo format restored after peel, got %d channels", c.Format().Channels)
	}
}

func TestPeelOnBaseIsNoOp(t *testing.T) {
	base := newFakeBase(1, 10)
	c := NewChain(base)
	c.Peel()
	if c.Depth() != 1 {
		t.Fatalf("expected peeling the base to be a no-op, got depth %d", c.Depth())
	}
}

func TestJointStereoHalvesFrameCount(t *testing.T) {
	base := newFakeBase(2, 100)
	c := NewChain(base)
	c.WrapJointStereo()

	buf := make([]byte, 400)
	n, err := c.ReadSamples(buf, 0, len(buf))
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	// 400 bytes requested as mono output -> 200 mono frames
	// worth of room, but source only has 100 stereo frames -> 100 mono
	// frames -> 200 bytes.
	if n != 200 {
		t.Errorf("expected 200 bytes (100 mono frames), got %d", n)
	}
}

func TestJointStereoHalvesDataSize(t *testing.T) {
	base := newFakeBase(2, 100) // DataSize = 100*2*2 = 400
	c := NewChain(base)
	c.WrapJointStereo()

	if got, want := c.Format().DataSize, int64(200); got != want {
		t.Errorf("expected data size halved to %d, got %d", want, got)
	}
}

func TestSampleResolutionScalesDataSize(t *testing.T) {
	base := newFakeBase(1, 100) // 16-bit, DataSize = 200
	c := NewChain(base)
	c.WrapSampleResolution(8)

	if got, want := c.Format().DataSize, int64(100); got != want {
		t.Errorf("expected data size scaled by 8/16 to %d, got %d", want, got)
	}
}

func TestSampleResolutionPreservesFullScale(t *testing.T) {
	base := newFakeBase(1, 10)
	c := NewChain(base)
	c.WrapSampleResolution(8)

	if c.Format().BitsPerSample != 8 {
		t.Fatalf("expected 8-bit output format, got %d", c.Format().BitsPerSample)
	}

	buf := make([]byte, 10)
	n, err := c.ReadSamples(buf, 0, len(buf))
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 8-bit samples, got %d bytes", n)
	}
	for i, b := range buf[:n] {
		src := decodeSample(base.data[i*2:], 2)
		want := int64(float64(src) * 127 / 32767)
		if got := decodeSample([]byte{b}, 1); got != want {
			t.Errorf("sample %d: 16-bit %d converted to %d, want %d (scaled by 127/32767)", i, src, got, want)
		}
	}
}

func TestFadeInStartsAtSilence(t *testing.T) {
	base := newFakeBase(1, 1000)
	c := NewChain(base)
	c.WrapFade(0.01, 0) // 10ms fade-in at 8kHz = 80 frames = 160 bytes

	buf := make([]byte, 2)
	n, err := c.ReadSamples(buf, 0, len(buf))
	if err != nil || n != 2 {
		t.Fatalf("ReadSamples failed: n=%d err=%v", n, err)
	}
	if v := decodeSample(buf, 2); v != 0 {
		t.Errorf("expected silence at position 0 during fade-in, got %d", v)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	base1 := newFakeBase(2, 100)
	c1 := NewChain(base1)
	c1.WrapDistortion(2.0)

	base2 := newFakeBase(2, 100)
	c2 := c1.Clone(base2)

	if c1.Depth() != c2.Depth() {
		t.Fatalf("expected clone to have the same depth, got %d vs %d", c1.Depth(), c2.Depth())
	}

	// Mutating one chain's stack must not affect the other's.
	c1.WrapReverb(20, 0.3, 4)
	if c1.Depth() == c2.Depth() {
		t.Errorf("expected clone's depth to stay independent after wrapping the original further")
	}
}

func TestReverbMixFormula(t *testing.T) {
	// One mono sample per "frame" at a high rate so a single comb line
	// is exactly one frame long (delay buffer starts at zero), making
	// the output of the very first two frames hand-computable:
	// combined = (x + decay*D[p]) / (1 + numDelays*decay).
	base := newFakeBase(1, 4)
	data := []int16{1000, 2000, 3000, 4000}
	for i, v := range data {
		base.data[i*2] = byte(v)
		base.data[i*2+1] = byte(v >> 8)
	}
	base.format.SampleRate = 1000 // 1ms delay == 1 frame at this rate

	c := NewChain(base)
	const decay = 0.5
	c.WrapReverb(1, decay, 1)

	buf := make([]byte, 8)
	n, err := c.ReadSamples(buf, 0, len(buf))
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 bytes, got %d", n)
	}

	denom := 1 + 1*decay

	// Frame 0: delay line starts at zero, so combined = x0/denom.
	want0 := float64(data[0]) / denom
	got0 := decodeSample(buf[0:], 2)
	if diff := float64(got0) - want0; diff > 1 || diff < -1 {
		t.Errorf("frame 0: want ~%v, got %v", want0, got0)
	}

	// Frame 1: the delay line now holds frame 0's combined output.
	want1 := (float64(data[1]) + decay*want0) / denom
	got1 := decodeSample(buf[2:], 2)
	if diff := float64(got1) - want1; diff > 1 || diff < -1 {
		t.Errorf("frame 1: want ~%v, got %v", want1, got1)
	}
}

func TestDistortionPreservesByteCount(t *testing.T) {
	base := newFakeBase(1, 50)
	c := NewChain(base)
	c.WrapDistortion(4.0)

	buf := make([]byte, 100)
	n, err := c.ReadSamples(buf, 0, len(buf))
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if n != 100 {
		t.Errorf("expected distortion to preserve byte count, got %d", n)
	}
}
