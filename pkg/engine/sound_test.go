package engine

import (
	"io"
	"testing"
	"time"

	"github.com/kestrelsound/jukebox/pkg/mixer"
	"github.com/kestrelsound/jukebox/pkg/pcm"
	"github.com/kestrelsound/jukebox/pkg/sink/memsink"
	"github.com/kestrelsound/jukebox/pkg/stage"
)

// fakeBase is a container.BaseDecoder test double producing a fixed
// amount of silence, patterned on how stage's own tests fake a base
// decoder.
type fakeBase struct {
	format pcm.Format
	closed bool
}

func newFakeBase(dataSize int64) *fakeBase {
	return &fakeBase{format: pcm.Format{Channels: 1, SampleRate: 8000, BitsPerSample: 16, DataSize: dataSize}}
}

func (f *fakeBase) Format() pcm.Format { return f.format }

func (f *fakeBase) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	if pos >= f.format.DataSize {
		return 0, nil
	}
	n := max
	if int64(n) > f.format.DataSize-pos {
		n = int(f.format.DataSize - pos)
	}
	for i := range buf[:n] {
		buf[i] = 0
	}
	return n, nil
}

func (f *fakeBase) Close() error {
	f.closed = true
	return nil
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSoundPlayReachesStoppedAtEndOfStream(t *testing.T) {
	base := newFakeBase(320) // 320 bytes / (2 bytes/frame) = 160 frames, small
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)

	var stopped bool
	s.OnStop(func() { stopped = true })

	s.Play()
	waitUntil(t, time.Second, func() bool { return s.State() == StateStopped })

	if !stopped {
		t.Error("expected on-stop callback to fire")
	}
	if len(snk.Bytes()) != 320 {
		t.Errorf("expected all 320 bytes written, got %d", len(snk.Bytes()))
	}
}

func TestSoundLoopRestartsAtZero(t *testing.T) {
	base := newFakeBase(64)
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)
	s.SetLoop(true)

	fired := 0
	s.AddTimedEvent(0, func() { fired++ })

	s.Play()
	waitUntil(t, time.Second, func() bool { return len(snk.Bytes()) >= 64*3 })
	s.Stop()

	if s.State() != StateStopped {
		t.Errorf("expected Stopped after Stop, got %s", s.State())
	}
	// The event sits at position 0, crossed on every loop wrap; it must
	// still only have fired once across the multiple wraps above.
	if fired != 1 {
		t.Errorf("expected timed event to fire exactly once across loop wraps, fired %d times", fired)
	}
}

func TestSoundPauseResume(t *testing.T) {
	base := newFakeBase(1 << 20)
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)
	// memsink never blocks, so a finite stream ends almost at once;
	// looping keeps the Sound Playing until the test pauses it.
	s.SetLoop(true)

	s.Play()
	waitUntil(t, time.Second, func() bool { return len(snk.Bytes()) > 0 })

	s.Pause()
	waitUntil(t, time.Second, func() bool { return s.State() == StatePaused })
	n := len(snk.Bytes())
	time.Sleep(20 * time.Millisecond)
	if len(snk.Bytes()) != n {
		t.Error("expected no writes while paused")
	}

	s.Play()
	waitUntil(t, time.Second, func() bool { return len(snk.Bytes()) > n })

	s.Stop()
	if s.State() != StateStopped {
		t.Error("expected Stopped after Stop")
	}
}

func TestSoundStopFiresOnStopLIFO(t *testing.T) {
	base := newFakeBase(1 << 20)
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)

	var order []int
	s.OnStop(func() { order = append(order, 1) })
	s.OnStop(func() { order = append(order, 2) })

	s.Play()
	waitUntil(t, time.Second, func() bool { return len(snk.Bytes()) > 0 })
	s.Stop()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("expected LIFO order [2 1], got %v", order)
	}
}

func TestSoundTimedEventFiresOnce(t *testing.T) {
	base := newFakeBase(1 << 20)
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)

	fired := 0
	s.AddTimedEvent(32, func() { fired++ })

	s.Play()
	waitUntil(t, time.Second, func() bool { return len(snk.Bytes()) > 256 })
	s.Stop()

	if fired != 1 {
		t.Errorf("expected event to fire exactly once, got %d", fired)
	}
}

func TestSoundVolumeZeroSilencesOutput(t *testing.T) {
	base := newFakeBase(256)
	// Fill fakeBase with non-silent values by wrapping a custom base
	// would require more plumbing; here we assert scale math directly
	// via applyVolume instead of round-tripping audible samples.
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)
	s.SetVolume(0)

	buf := make([]byte, 4)
	encodeSample(buf[0:], 1000, 2)
	encodeSample(buf[2:], 1000, 2)
	s.applyVolume(buf, 2, 2, 1, float64(chain.Format().SilenceLevel()))
	if decodeSample(buf[0:], 2) != 0 {
		t.Errorf("expected silence at zero volume, got %d", decodeSample(buf[0:], 2))
	}
}

func TestSoundPopAndClearOnStopStack(t *testing.T) {
	base := newFakeBase(1 << 20)
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)

	s.OnStop(func() {})
	s.OnStop(func() {})
	s.OnStop(func() {})

	if _, ok := s.PopOnStopCallback(); !ok {
		t.Fatal("expected a callback to pop")
	}

	var fired bool
	s.OnStop(func() { fired = true })
	s.ClearOnStopStack()

	s.Play()
	waitUntil(t, time.Second, func() bool { return len(snk.Bytes()) > 0 })
	s.Stop()

	if fired {
		t.Error("expected cleared on-stop stack not to fire")
	}
	if _, ok := s.PopOnStopCallback(); ok {
		t.Error("expected empty on-stop stack after Stop drained it")
	}
}

func TestSoundRestartRewindsCursor(t *testing.T) {
	base := newFakeBase(1 << 20)
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)

	s.Play()
	waitUntil(t, time.Second, func() bool { return s.Position() > 128 })

	s.Restart()
	waitUntil(t, time.Second, func() bool { return s.State() == StatePlaying })
	if s.Position() >= 128 {
		t.Errorf("expected cursor rewound near 0 after Restart, got %d", s.Position())
	}

	s.Stop()
}

func TestSoundFormatAccessors(t *testing.T) {
	base := newFakeBase(1600)
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)
	s.SetFilename("test.wav")

	if s.NumChannels() != 1 {
		t.Errorf("expected 1 channel, got %d", s.NumChannels())
	}
	if s.SampleRate() != 8000 {
		t.Errorf("expected 8000 Hz, got %d", s.SampleRate())
	}
	if s.BitsPerSample() != 16 {
		t.Errorf("expected 16 bits, got %d", s.BitsPerSample())
	}
	if s.DataSize() != 1600 {
		t.Errorf("expected data size 1600, got %d", s.DataSize())
	}
	if got, want := s.Duration(), 0.1; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("expected duration 0.1s, got %f", got)
	}
	if s.Filename() != "test.wav" {
		t.Errorf("expected filename to round-trip, got %q", s.Filename())
	}
}

func TestSoundChainMutationNoOpWhilePlaying(t *testing.T) {
	base := newFakeBase(1 << 20)
	chain := stage.NewChain(base)
	snk := memsink.New(64)
	s := New(chain, snk, mixer.New(), nil)
	// memsink never blocks, so a finite stream ends almost at once;
	// looping keeps the Sound Playing until Stop.
	s.SetLoop(true)

	s.Play()
	waitUntil(t, time.Second, func() bool { return len(snk.Bytes()) > 0 })

	depthBefore := chain.Depth()
	s.Distortion(5)
	s.JointStereo()
	if chain.Depth() != depthBefore {
		t.Error("expected chain mutation to be a no-op while Playing")
	}

	s.Stop()
	s.JointStereo()
	if chain.Depth() != depthBefore+1 {
		t.Error("expected chain mutation to succeed once Stopped")
	}
}

var _ io.Closer = (*fakeBase)(nil)
