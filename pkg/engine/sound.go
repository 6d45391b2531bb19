// Package engine implements the Playback Engine (L3): the state
// machine and producer goroutine that drive a stage.Chain's samples
// into a sink.Sink, applying per-instance volume and the process-wide
// mixer on the way out. This is the part of the original design that
// used to live inside AlsaPlaying/AlsaSound; here it is a single
// Sound type with no platform-specific code at all, since everything
// platform-specific already moved into the sink package.
package engine

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/kestrelsound/jukebox/pkg/container"
	"github.com/kestrelsound/jukebox/pkg/mixer"
	"github.com/kestrelsound/jukebox/pkg/sink"
	"github.com/kestrelsound/jukebox/pkg/stage"
)

// Sound owns one decoder chain, one sink, and the goroutine that
// pumps samples between them. The zero value is not usable; construct
// with New.
type Sound struct {
	chain *stage.Chain
	snk   sink.Sink
	mx    *mixer.Mixer

	mu    sync.Mutex
	state State

	// chainMu guards every chain.ReadSamples pull against a concurrent
	// chain mutation. Ordinary stage mutations (Distortion, Reverb,
	// ...) are only legal in Stopped/Paused and so never race the
	// producer goroutine, but FadeOnStop is explicitly allowed to
	// install its stage while Playing (§4.2), so it and the producer's
	// pull both take this lock.
	chainMu sync.Mutex

	cursor atomic.Int64
	volume atomic.Uint64 // float64 bits, math.Float64bits
	loop   atomic.Bool

	onStop      []func()
	timedEvents []*timedEvent

	stopCh   chan struct{}
	resumeCh chan struct{}
	wg       sync.WaitGroup

	reopen func() (container.BaseDecoder, error)

	filename string
}

// New builds a Sound around chain, writing to snk, using mx as the
// process-wide mixer (pass mixer.Default unless testing). reopen is
// used only by Clone, to re-open the underlying source for the
// cloned instance's own independent chain; it may be nil if Clone
// will never be called on this Sound.
func New(chain *stage.Chain, snk sink.Sink, mx *mixer.Mixer, reopen func() (container.BaseDecoder, error)) *Sound {
	s := &Sound{
		chain:  chain,
		snk:    snk,
		mx:     mx,
		reopen: reopen,
	}
	s.volume.Store(math.Float64bits(1.0))
	return s
}

// State returns the current playback state.
func (s *Sound) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the current playback position in bytes.
func (s *Sound) Position() int64 { return s.cursor.Load() }

// Seek moves the playback cursor to pos bytes, valid in any state.
// Stages without true random access treat any non-zero pos as
// "continue from here" rather than an exact seek, per each
// container's own seek semantics.
func (s *Sound) Seek(pos int64) {
	s.cursor.Store(pos)
}

// SetVolume sets this Sound's own volume, clamped to [0, 1]. The
// audible volume is this value multiplied by the mixer's master
// volume.
func (s *Sound) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume.Store(math.Float64bits(v))
}

// Volume returns this Sound's own volume (not multiplied by the
// mixer).
func (s *Sound) Volume() float64 {
	return math.Float64frombits(s.volume.Load())
}

// SetLoop controls whether reaching end-of-stream restarts playback
// from position 0 instead of transitioning to Stopped.
func (s *Sound) SetLoop(loop bool) { s.loop.Store(loop) }

// Loop reports the current loop setting.
func (s *Sound) Loop() bool { return s.loop.Load() }

// OnStop registers fn to fire when playback transitions to Stopped,
// whether via Stop, FadeOnStop, or natural end-of-stream without
// looping. Callbacks fire in LIFO order (most recently registered
// first), mirroring how the original decorator stack unwound on
// stop.
func (s *Sound) OnStop(fn func()) { s.pushOnStop(fn) }

// AddTimedEvent registers fn to fire once playback position crosses
// pos bytes, with at most one period's latency.
func (s *Sound) AddTimedEvent(pos int64, fn func()) { s.addTimedEvent(pos, fn) }

// PopOnStopCallback removes and returns the most recently pushed
// on-stop callback without firing it. The second return value is
// false if the stack was empty.
func (s *Sound) PopOnStopCallback() (func(), bool) { return s.popOnStop() }

// ClearOnStopStack empties the on-stop callback stack without firing
// any of its entries.
func (s *Sound) ClearOnStopStack() { s.clearOnStopStack() }

// SetFilename records the path this Sound was loaded from, purely for
// the Filename accessor; it has no effect on playback.
func (s *Sound) SetFilename(name string) { s.filename = name }

// Filename returns the path this Sound was loaded from, or "" if
// SetFilename was never called (e.g. a Sound built directly around an
// in-memory chain).
func (s *Sound) Filename() string { return s.filename }

// NumChannels returns the top of chain's reported channel count.
func (s *Sound) NumChannels() int { return s.chain.Format().Channels }

// SampleRate returns the top of chain's reported sample rate in Hz.
func (s *Sound) SampleRate() int { return s.chain.Format().SampleRate }

// BitsPerSample returns the top of chain's reported bit depth.
func (s *Sound) BitsPerSample() int { return s.chain.Format().BitsPerSample }

// DataSize returns the top of chain's reported total PCM byte length.
func (s *Sound) DataSize() int64 { return s.chain.Format().DataSize }

// Duration returns the top of chain's reported length in seconds,
// computed from DataSize and the format's byte rate.
func (s *Sound) Duration() float64 {
	bps := s.chain.Format().BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return float64(s.chain.Format().DataSize) / float64(bps)
}

// FadeOnStop installs a fade-out-and-truncate stage at the current
// playback position and lets the natural end-of-stream machinery
// (below) carry the transition to Stopped once the fade tail has
// played — a graceful alternative to the hard Stop.
func (s *Sound) FadeOnStop(seconds float64) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	s.chain.WrapFadeOnStop(s.cursor.Load(), seconds)
}

// Play starts (or resumes) playback. Calling Play while already
// Playing is a no-op.
func (s *Sound) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePlaying:
		return
	case StatePaused:
		s.state = StatePlaying
		select {
		case s.resumeCh <- struct{}{}:
		default:
		}
		return
	default: // StateStopped
		s.state = StatePlaying
		s.cursor.Store(0)
		s.stopCh = make(chan struct{})
		// Buffered so a resume sent before run() blocks on it is kept.
		s.resumeCh = make(chan struct{}, 1)
		s.wg.Add(1)
		go s.run(s.stopCh, s.resumeCh)
	}
}

// Pause suspends the producer goroutine without discarding buffered
// state; Play resumes from the same position. Pause is a no-op
// unless currently Playing.
func (s *Sound) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlaying {
		return
	}
	s.state = StatePaused
}

// Stop halts playback immediately, drops any buffered-but-unplayed
// audio from the sink, and fires the on-stop callback stack. Stop
// blocks until the producer goroutine has fully exited.
func (s *Sound) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	wasPaused := s.state == StatePaused
	s.state = StateStopped
	s.mu.Unlock()

	close(stopCh)
	if wasPaused {
		// run() may be blocked waiting on resumeCh; give it a push
		// so it observes stopCh too.
		select {
		case s.resumeCh <- struct{}{}:
		default:
		}
	}
	s.wg.Wait()
	_ = s.snk.Drop()
	s.fireOnStop()
}

// Wait blocks until the producer goroutine exits: playback reached
// Stopped on its own (natural end-of-stream without looping, or a
// FadeOnStop tail finishing), or Stop was called. A Pause does not
// end the wait. It returns at once if the Sound is already Stopped.
func (s *Sound) Wait() {
	s.mu.Lock()
	wg := &s.wg
	state := s.state
	s.mu.Unlock()
	if state == StateStopped {
		return
	}
	wg.Wait()
}

// Clone builds an independent Sound with its own decoder chain (via
// reopen) and its own sink, sharing nothing mutable with the
// original — the prototype-style deep clone.
func (s *Sound) Clone(newSink sink.Sink) (*Sound, error) {
	base, err := s.reopen()
	if err != nil {
		return nil, err
	}
	nc := s.chain.Clone(base)
	clone := New(nc, newSink, s.mx, s.reopen)
	clone.SetVolume(s.Volume())
	clone.SetLoop(s.Loop())
	clone.SetFilename(s.filename)
	return clone, nil
}

// Restart stops playback if active, rewinds the cursor to 0, and
// starts playing again from the beginning.
func (s *Sound) Restart() {
	s.Stop()
	s.Seek(0)
	s.Play()
}

// chainMutationGuard reports whether the decoder chain may be mutated
// right now: §4.2 requires the engine not be actively pulling, which
// holds only in Stopped or Paused.
func (s *Sound) chainMutationGuard() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StatePlaying
}

// Distortion wraps a soft-clip distortion stage onto the decoder
// chain. It is a no-op while Playing, per §4.2's chain-mutation rule.
func (s *Sound) Distortion(gain float64) {
	if !s.chainMutationGuard() {
		return
	}
	s.chain.WrapDistortion(gain)
}

// Reverb wraps a comb-filter reverb stage onto the decoder chain. It
// is a no-op while Playing.
func (s *Sound) Reverb(delayMs, decay float64, numDelays int) {
	if !s.chainMutationGuard() {
		return
	}
	s.chain.WrapReverb(delayMs, decay, numDelays)
}

// Fade wraps a linear fade-in/fade-out stage onto the decoder chain.
// It is a no-op while Playing.
func (s *Sound) Fade(fadeInSec, fadeOutSec float64) {
	if !s.chainMutationGuard() {
		return
	}
	s.chain.WrapFade(fadeInSec, fadeOutSec)
}

// Resolution wraps a bit-depth conversion stage onto the decoder
// chain. It is a no-op while Playing.
func (s *Sound) Resolution(bits int) {
	if !s.chainMutationGuard() {
		return
	}
	s.chain.WrapSampleResolution(bits)
}

// JointStereo wraps a stereo-to-mono mixdown stage onto the decoder
// chain. It is a no-op while Playing.
func (s *Sound) JointStereo() {
	if !s.chainMutationGuard() {
		return
	}
	s.chain.WrapJointStereo()
}

// MovingAverage wraps a leaky-integrator smoothing stage onto the
// decoder chain. It is a no-op while Playing.
func (s *Sound) MovingAverage(windowSeconds float64) {
	if !s.chainMutationGuard() {
		return
	}
	s.chain.WrapMovingAverage(int(windowSeconds * float64(s.chain.Format().SampleRate)))
}

// PeelDecoder removes the topmost stage from the decoder chain. It is
// a no-op while Playing; peeling past the base decoder is itself
// already a no-op at the Chain level.
func (s *Sound) PeelDecoder() {
	if !s.chainMutationGuard() {
		return
	}
	s.chain.Peel()
}

// run is the producer goroutine: pull samples from the chain, apply
// volume, push to the sink, advance the cursor, until stopCh closes
// or the stream ends without looping.
func (s *Sound) run(stopCh, resumeCh chan struct{}) {
	defer s.wg.Done()

	buf := make([]byte, s.snk.PeriodSize())
	frameSize := s.chain.Format().FrameSize()
	silence := 0.0 // decodeSample values are already measured from the silence level
	bytesPerSample := s.chain.Format().BitsPerSample / 8
	channels := s.chain.Format().Channels

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		s.mu.Lock()
		state := s.state
		s.mu.Unlock()

		if state == StatePaused {
			select {
			case <-resumeCh:
				continue
			case <-stopCh:
				return
			}
		}

		pos := s.cursor.Load()
		s.chainMu.Lock()
		n, err := s.chain.ReadSamples(buf, pos, len(buf))
		s.chainMu.Unlock()
		if err != nil {
			slog.Error("engine: read failed", "error", err)
			s.transitionToStopped()
			return
		}

		if n == 0 {
			if s.loop.Load() {
				s.cursor.Store(0)
				continue
			}
			s.transitionToStoppedNaturally()
			return
		}

		s.fireTimedEvents(pos, pos+int64(n))
		s.applyVolume(buf[:n], frameSize, bytesPerSample, channels, silence)

		out := buf[:n]
		if n < len(buf) {
			// Short read: the sink expects a full period per write, so
			// pad the remainder with silence rather than hand it a
			// partial block.
			fillSilence(buf[n:], bytesPerSample)
			out = buf
		}

		if _, werr := s.snk.Write(out); werr != nil {
			slog.Error("engine: sink write failed", "error", werr)
			s.transitionToStopped()
			return
		}
		s.cursor.Add(int64(n))
	}
}

// applyVolume scales every sample in buf around silence by this
// Sound's own volume times the mixer's master volume, in place.
// silence is in decodeSample's units, which are already centred on the
// format's silence level, so it is 0 for every bit depth.
func (s *Sound) applyVolume(buf []byte, frameSize, bytesPerSample, channels int, silence float64) {
	scale := s.Volume() * s.mx.Volume()
	if scale >= 0.9999 {
		return
	}
	for off := 0; off+bytesPerSample <= len(buf); off += bytesPerSample {
		v := float64(decodeSample(buf[off:], bytesPerSample))
		y := silence + (v-silence)*scale
		encodeSample(buf[off:], int64(y), bytesPerSample)
	}
}

// transitionToStopped is used when a chain read or sink write fails.
func (s *Sound) transitionToStopped() {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.fireOnStop()
}

// transitionToStoppedNaturally is used when end-of-stream is reached
// without looping — Drain rather than Drop, since whatever was
// already written to the sink should still be heard.
func (s *Sound) transitionToStoppedNaturally() {
	_ = s.snk.Drain()
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.fireOnStop()
}
