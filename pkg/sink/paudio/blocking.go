// Package paudio implements sink.Sink on top of PortAudio
// (github.com/drgolem/go-portaudio), adapted from the teacher's
// pkg/audioplayer.Player (blocking write path, consumer goroutine,
// atomic metrics) and internal/fileplayer.FilePlayer (callback path).
// Two constructors are offered: NewBlocking (default, simpler) and
// NewCallback (lower latency, frame-bridge ring buffer).
package paudio

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/kestrelsound/jukebox/pkg/pcm"
	"github.com/kestrelsound/jukebox/pkg/ringbuffer"
	"github.com/kestrelsound/jukebox/pkg/sink"
)

// BlockingConfig configures a blocking-mode sink.
type BlockingConfig struct {
	DeviceIndex     int
	FramesPerBuffer int
	BufferSize      uint64 // internal smoothing ring buffer, in bytes
}

// DefaultBlockingConfig mirrors the teacher's audioplayer.DefaultConfig.
func DefaultBlockingConfig() BlockingConfig {
	return BlockingConfig{
		DeviceIndex:     1,
		FramesPerBuffer: 512,
		BufferSize:      256 * 1024,
	}
}

// blockingSink smooths the engine's producer-thread writes through an
// internal ring buffer drained by its own consumer goroutine into
// PortAudio's blocking Write call, the same split the teacher's
// Player.producer/consumer pair implements — here scoped to just the
// device boundary rather than the whole decode pipeline, since the
// engine now owns decoding.
type blockingSink struct {
	stream          *portaudio.PaStream
	ringbuf         *ringbuffer.RingBuffer
	format          pcm.Format
	framesPerBuffer int

	stopCh chan struct{}
	doneCh chan struct{}

	underruns atomic.Uint64
	closed    atomic.Bool
}

// NewBlocking opens a PortAudio output stream for format and returns a
// Sink that writes to it via a blocking consumer goroutine.
func NewBlocking(format pcm.Format, cfg BlockingConfig) (sink.Sink, error) {
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

	outParams := portaudio.PaStreamParameters{
		DeviceIndex:  cfg.DeviceIndex,
		ChannelCount: format.Channels,
		SampleFormat: sampleFormat,
	}

	stream, err := portaudio.NewStream(outParams, float64(format.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("paudio: creating stream: %w", err)
	}
	if err := stream.Open(cfg.FramesPerBuffer); err != nil {
		return nil, fmt.Errorf("paudio: opening stream: %w", err)
	}
	if err := stream.StartStream(); err != nil {
		return nil, fmt.Errorf("paudio: starting stream: %w", err)
	}

	s := &blockingSink{
		stream:          stream,
		ringbuf:         ringbuffer.New(cfg.BufferSize),
		format:          format,
		framesPerBuffer: cfg.FramesPerBuffer,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
	go s.consumer()
	return s, nil
}

func (s *blockingSink) PeriodSize() int {
	return s.framesPerBuffer * s.format.FrameSize()
}

func (s *blockingSink) Write(block []byte) (int, error) {
	if s.closed.Load() {
		return 0, sink.ErrClosed
	}
	for {
		n, err := s.ringbuf.Write(block)
		if err == nil {
			return n, nil
		}
		select {
		case <-s.stopCh:
			return 0, sink.ErrClosed
		case <-time.After(time.Millisecond):
		}
	}
}

func (s *blockingSink) consumer() {
	defer close(s.doneCh)

	frameBytes := s.format.FrameSize()
	bufSize := s.framesPerBuffer * frameBytes
	buf := make([]byte, bufSize)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		n, err := s.ringbuf.Read(buf)
		if err != nil || n < frameBytes {
			s.underruns.Add(1)
			time.Sleep(5 * time.Millisecond)
			continue
		}

		frames := n / frameBytes
		if werr := s.stream.Write(frames, buf[:frames*frameBytes]); werr != nil {
			slog.Error("paudio: write failed", "error", werr)
			return
		}
	}
}

func (s *blockingSink) Drop() error {
	s.ringbuf.Reset()
	return nil
}

func (s *blockingSink) Drain() error {
	for s.ringbuf.AvailableRead() > 0 {
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (s *blockingSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh

	if err := s.stream.StopStream(); err != nil {
		slog.Warn("paudio: stop stream failed", "error", err)
	}
	return s.stream.Close()
}
