package paudio

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/kestrelsound/jukebox/pkg/audioframe"
	"github.com/kestrelsound/jukebox/pkg/audioframeringbuffer"
	"github.com/kestrelsound/jukebox/pkg/pcm"
	"github.com/kestrelsound/jukebox/pkg/sink"
)

// CallbackConfig configures a callback-mode sink.
type CallbackConfig struct {
	DeviceIndex          int
	FramesPerBuffer      int
	BufferCapacityFrames uint64 // number of AudioFrames the bridge ring buffer holds
	SamplesPerFrame      int    // samples per AudioFrame chunk fed to the callback
}

// DefaultCallbackConfig mirrors the teacher's NewFilePlayer defaults.
func DefaultCallbackConfig() CallbackConfig {
	return CallbackConfig{
		DeviceIndex:          1,
		FramesPerBuffer:      512,
		BufferCapacityFrames: 64,
		SamplesPerFrame:      1024,
	}
}

// callbackSink runs PortAudio in callback mode: audioCallback executes
// on PortAudio's own real-time thread (not a goroutine) and must never
// block, so it reads AudioFrames the producer goroutine equivalent
// (Sink.Write's caller, here the engine's producer) already queued
// into an audioframeringbuffer — the same bridge
// internal/fileplayer.FilePlayer used.
type callbackSink struct {
	stream          *portaudio.PaStream
	ringbuf         *audioframeringbuffer.AudioFrameRingBuffer
	format          pcm.Format
	framesPerBuffer int
	samplesPerFrame int

	currentFrame atomic.Pointer[audioframe.AudioFrame]
	frameOffset  int

	closed atomic.Bool
}

// NewCallback opens a PortAudio output stream in callback mode.
func NewCallback(format pcm.Format, cfg CallbackConfig) (sink.Sink, error) {
	var sampleFormat portaudio.PaSampleFormat
	switch format.BitsPerSample {
	case 16:
		sampleFormat = portaudio.SampleFmtInt16
	case 24:
		sampleFormat = portaudio.SampleFmtInt24
	case 32:
		sampleFormat = portaudio.SampleFmtInt32
	default:
		return nil, fmt.Errorf("paudio: unsupported bit depth %d", format.BitsPerSample)
	}

	s := &callbackSink{
		ringbuf:         audioframeringbuffer.New(cfg.BufferCapacityFrames),
		format:          format,
		framesPerBuffer: cfg.FramesPerBuffer,
		samplesPerFrame: cfg.SamplesPerFrame,
	}

	s.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  cfg.DeviceIndex,
			ChannelCount: format.Channels,
			SampleFormat: sampleFormat,
		},
		SampleRate: float64(format.SampleRate),
	}

	if err := s.stream.OpenCallback(cfg.FramesPerBuffer, s.audioCallback); err != nil {
		return nil, fmt.Errorf("paudio: opening callback stream: %w", err)
	}
	if err := s.stream.StartStream(); err != nil {
		return nil, fmt.Errorf("paudio: starting stream: %w", err)
	}
	return s, nil
}

func (s *callbackSink) PeriodSize() int {
	return s.framesPerBuffer * s.format.FrameSize()
}

// audioCallback runs on PortAudio's real-time thread. It must not
// allocate in the steady state and must never block.
func (s *callbackSink) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	bytesNeeded := int(frameCount) * s.format.FrameSize()
	written := 0

	for written < bytesNeeded {
		cur := s.currentFrame.Load()
		if cur == nil {
			if s.ringbuf.AvailableRead() == 0 {
				break
			}
			frames, err := s.ringbuf.Read(1)
			if err != nil || len(frames) == 0 {
				break
			}
			s.currentFrame.Store(&frames[0])
			cur = &frames[0]
			s.frameOffset = 0
		}

		remainingInFrame := len(cur.Audio) - s.frameOffset
		remainingOut := bytesNeeded - written
		n := min(remainingInFrame, remainingOut)
		copy(output[written:written+n], cur.Audio[s.frameOffset:s.frameOffset+n])
		written += n
		s.frameOffset += n

		if s.frameOffset >= len(cur.Audio) {
			s.currentFrame.Store(nil)
			s.frameOffset = 0
		}
	}

	if written < bytesNeeded {
		clear(output[written:bytesNeeded])
	}
	return portaudio.Continue
}

// Write splits block into AudioFrame chunks and blocks until all of
// them are accepted by the bridge ring buffer.
func (s *callbackSink) Write(block []byte) (int, error) {
	if s.closed.Load() {
		return 0, sink.ErrClosed
	}
	frameBytes := s.format.FrameSize()
	chunkBytes := s.samplesPerFrame * frameBytes

	total := 0
	for total < len(block) {
		end := total + chunkBytes
		if end > len(block) {
			end = len(block)
		}
		chunk := block[total:end]
		af := audioframe.AudioFrame{
			Format: audioframe.FrameFormat{
				SampleRate:    uint32(s.format.SampleRate),
				Channels:      uint8(s.format.Channels),
				BitsPerSample: uint8(s.format.BitsPerSample),
			},
			SamplesCount: uint16(len(chunk) / frameBytes),
			Audio:        chunk,
		}
		for {
			n, err := s.ringbuf.Write([]audioframe.AudioFrame{af})
			if n == 1 {
				break
			}
			if s.closed.Load() {
				return total, sink.ErrClosed
			}
			_ = err
			time.Sleep(time.Millisecond)
		}
		total = end
	}
	return total, nil
}

func (s *callbackSink) Drop() error {
	s.ringbuf.Reset()
	s.currentFrame.Store(nil)
	s.frameOffset = 0
	return nil
}

func (s *callbackSink) Drain() error {
	for s.ringbuf.AvailableRead() > 0 || s.currentFrame.Load() != nil {
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (s *callbackSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.stream.StopStream(); err != nil {
		slog.Warn("paudio: stop stream failed", "error", err)
	}
	return s.stream.CloseCallback()
}
