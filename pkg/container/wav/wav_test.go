package wav

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/kestrelsound/jukebox/pkg/container"
)

// buildWAV assembles a minimal canonical-order RIFF/WAVE buffer with
// the given fmt fields and PCM payload.
func buildWAV(channels, sampleRate, bitsPerSample int, data []byte) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	fmtBody := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtBody[0:2], 1) // PCM
	binary.LittleEndian.PutUint16(fmtBody[2:4], uint16(channels))
	binary.LittleEndian.PutUint32(fmtBody[4:8], uint32(sampleRate))
	binary.LittleEndian.PutUint32(fmtBody[8:12], uint32(byteRate))
	binary.LittleEndian.PutUint16(fmtBody[12:14], uint16(blockAlign))
	binary.LittleEndian.PutUint16(fmtBody[14:16], uint16(bitsPerSample))

	var buf []byte
	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, 0, 0, 0, 0) // placeholder RIFF size
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, le32(len(fmtBody))...)
	buf = append(buf, fmtBody...)

	buf = append(buf, []byte("data")...)
	buf = append(buf, le32(len(data))...)
	buf = append(buf, data...)

	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)-8))
	return buf
}

func le32(v int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func TestParseValidWAV(t *testing.T) {
	data := []byte{1, 0, 2, 0, 3, 0, 4, 0} // 4 frames, 16-bit mono
	raw := buildWAV(1, 8000, 16, data)

	c, err := Parse(raw, "test.wav")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	f := c.Format()
	if f.Channels != 1 || f.SampleRate != 8000 || f.BitsPerSample != 16 || f.DataSize != int64(len(data)) {
		t.Errorf("unexpected format: %+v", f)
	}

	dec, err := c.MakeDecoder()
	if err != nil {
		t.Fatalf("MakeDecoder failed: %v", err)
	}
	defer dec.Close()

	buf := make([]byte, len(data))
	n, err := dec.ReadSamples(buf, 0, len(buf))
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if n != len(data) {
		t.Fatalf("expected %d bytes, got %d", len(data), n)
	}
	for i := range data {
		if buf[i] != data[i] {
			t.Errorf("byte %d: got %d want %d", i, buf[i], data[i])
		}
	}
}

func TestParseRejectsMissingRIFFHeader(t *testing.T) {
	_, err := Parse([]byte("not a wav file at all"), "bad.wav")
	if !errors.Is(err, container.ErrMalformedHeader) {
		t.Errorf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestParseRejectsNonPCM(t *testing.T) {
	raw := buildWAV(1, 8000, 16, []byte{0, 0})
	// Flip AudioFormat in the fmt chunk (offset 20 in this fixed layout)
	// from PCM(1) to something else.
	binary.LittleEndian.PutUint16(raw[20:22], 3)

	_, err := Parse(raw, "float.wav")
	if !errors.Is(err, container.ErrNotPCM) {
		t.Errorf("expected ErrNotPCM, got %v", err)
	}
}

func TestParseRejectsOversizedData(t *testing.T) {
	// The data chunk's declared size must actually be backed by that
	// many bytes, or Parse clamps it down to what's present (and a
	// too-small chunk reads as a different error); so exercising the
	// real ErrTooLarge path means supplying the oversized payload.
	raw := buildWAV(1, 8000, 16, make([]byte, maxDataSize+1))

	_, err := Parse(raw, "huge.wav")
	if !errors.Is(err, container.ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestReadSamplesClampsAtEnd(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	raw := buildWAV(1, 8000, 16, data)
	c, err := Parse(raw, "clamp.wav")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dec, _ := c.MakeDecoder()

	buf := make([]byte, 10)
	n, err := dec.ReadSamples(buf, 2, 10)
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected clamp to 2 remaining bytes, got %d", n)
	}

	n, err = dec.ReadSamples(buf, int64(len(data)), 10)
	if err != nil || n != 0 {
		t.Errorf("expected (0, nil) past end of data, got (%d, %v)", n, err)
	}
}
