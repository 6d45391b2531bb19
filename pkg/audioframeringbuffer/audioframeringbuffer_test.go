package audioframeringbuffer

import (
	"sync"
	"testing"

	"github.com/kestrelsound/jukebox/pkg/audioframe"
)

func frame(samplesCount uint16, audio ...byte) audioframe.AudioFrame {
	return audioframe.AudioFrame{
		Format:       audioframe.FrameFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 16},
		SamplesCount: samplesCount,
		Audio:        audio,
	}
}

func TestNewRoundsCapacityUpToPowerOf2(t *testing.T) {
	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 100: 128, 1000: 1024, 1024: 1024}
	for in, want := range cases {
		if got := New(in).Size(); got != want {
			t.Errorf("New(%d).Size() = %d, want %d", in, got, want)
		}
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	rb := New(16)
	frames := []audioframe.AudioFrame{frame(1, 1, 2), frame(2, 3, 4), frame(3, 5, 6)}

	n, err := rb.Write(frames)
	if err != nil || n != len(frames) {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	if got := rb.AvailableRead(); got != 3 {
		t.Errorf("AvailableRead = %d, want 3", got)
	}

	out, err := rb.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, f := range out {
		if f.SamplesCount != frames[i].SamplesCount {
			t.Errorf("frame %d: SamplesCount = %d, want %d", i, f.SamplesCount, frames[i].SamplesCount)
		}
	}
}

func TestReadReturnsFewerThanRequestedWhenBufferRunsShort(t *testing.T) {
	rb := New(16)
	frames := make([]audioframe.AudioFrame, 5)
	for i := range frames {
		frames[i] = frame(uint16(i + 1))
	}
	if _, err := rb.Write(frames); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := rb.Read(10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out) != 5 {
		t.Errorf("Read(10) on a 5-frame buffer returned %d frames, want 5", len(out))
	}
}

func TestWritePartiallyFillsWhenOverCapacity(t *testing.T) {
	rb := New(4)
	n, err := rb.Write(make([]audioframe.AudioFrame, 5))
	if err != nil {
		t.Fatalf("partial write should not error: %v", err)
	}
	if n != 4 {
		t.Errorf("wrote %d frames into a 4-capacity buffer, want 4", n)
	}

	if _, err := rb.Write([]audioframe.AudioFrame{{}}); err != ErrInsufficientSpace {
		t.Errorf("expected ErrInsufficientSpace once full, got %v", err)
	}
}

func TestReadOnEmptyBufferReturnsErrInsufficientData(t *testing.T) {
	if _, err := New(16).Read(1); err != ErrInsufficientData {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestWriteAndReadWrapAroundTheRing(t *testing.T) {
	rb := New(4)

	if _, err := rb.Write([]audioframe.AudioFrame{frame(1), frame(2), frame(3)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := rb.Read(2); err != nil { // leaves frame 3 pending, crosses write/read positions
		t.Fatalf("Read: %v", err)
	}
	if _, err := rb.Write([]audioframe.AudioFrame{frame(10), frame(11), frame(12)}); err != nil {
		t.Fatalf("Write after wrap: %v", err)
	}

	out, err := rb.Read(4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []uint16{3, 10, 11, 12}
	if len(out) != len(want) {
		t.Fatalf("got %d frames, want %d", len(out), len(want))
	}
	for i, w := range want {
		if out[i].SamplesCount != w {
			t.Errorf("frame %d: SamplesCount = %d, want %d", i, out[i].SamplesCount, w)
		}
	}
}

func TestResetClearsPositions(t *testing.T) {
	rb := New(16)
	if _, err := rb.Write(make([]audioframe.AudioFrame, 3)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rb.Reset()
	if rb.AvailableRead() != 0 {
		t.Errorf("AvailableRead after Reset = %d, want 0", rb.AvailableRead())
	}
	if rb.AvailableWrite() != rb.Size() {
		t.Errorf("AvailableWrite after Reset = %d, want %d (full capacity)", rb.AvailableWrite(), rb.Size())
	}
}

func TestWriteCopiesAudioSoCallerCanReuseItsBuffer(t *testing.T) {
	rb := New(16)
	shared := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	if _, err := rb.Write([]audioframe.AudioFrame{{Audio: shared}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for i := range shared {
		shared[i] = 0xFF // simulate the producer reusing its scratch buffer
	}

	out, err := rb.Read(1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	for i, b := range want {
		if out[0].Audio[i] != b {
			t.Errorf("Audio[%d] = 0x%02X, want 0x%02X (ring buffer should hold its own copy)", i, out[0].Audio[i], b)
		}
	}
}

func TestConcurrentProducerConsumerDeliversEveryFrameInOrder(t *testing.T) {
	rb := New(256)
	const total = 2000
	const batch = 10

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < total; i += batch {
			pending := make([]audioframe.AudioFrame, batch)
			for j := range pending {
				pending[j] = frame(uint16(i + j))
			}
			for len(pending) > 0 {
				n, _ := rb.Write(pending)
				pending = pending[n:]
			}
		}
	}()

	received := 0
	go func() {
		defer wg.Done()
		for received < total {
			out, err := rb.Read(batch)
			if err == ErrInsufficientData {
				continue
			}
			for _, f := range out {
				if f.SamplesCount != uint16(received) {
					t.Errorf("frame %d: SamplesCount = %d, want %d", received, f.SamplesCount, received)
				}
				received++
			}
		}
	}()

	wg.Wait()
	if received != total {
		t.Errorf("received %d frames, want %d", received, total)
	}
}
