// Package mp3 implements the MP3 Container and BaseDecoder on top of
// hajimehoshi/go-mp3, whose Decoder already maintains an internal
// seek table (populated lazily as frames are decoded) giving
// O(log n)-ish reseeks over the decoded PCM byte stream — the
// property spec.md's container section calls for and the original
// C++ decoder never actually implemented (see DESIGN.md).
package mp3

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"github.com/kestrelsound/jukebox/pkg/container"
	"github.com/kestrelsound/jukebox/pkg/pcm"
)

func init() {
	container.RegisterFormat(".mp3", Open)
}

// Container holds the raw file bytes; each MakeDecoder call opens an
// independent go-mp3 Decoder over a fresh reader so that cloned
// prototypes (stage.Chain.Clone) get their own decode state.
type Container struct {
	raw    []byte
	format pcm.Format
}

// Open reads path fully into memory and probes it with go-mp3 to
// recover channel count, sample rate, and total PCM length.
func Open(path string) (container.Container, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, container.ErrNotFound
		}
		return nil, err
	}

	probe, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", container.ErrMalformedHeader, err)
	}

	return &Container{
		raw: raw,
		format: pcm.Format{
			Channels:      2,
			SampleRate:    probe.SampleRate(),
			BitsPerSample: 16,
			DataSize:      probe.Length(),
		},
	}, nil
}

func (c *Container) Format() pcm.Format { return c.format }

func (c *Container) MakeDecoder() (container.BaseDecoder, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(c.raw))
	if err != nil {
		return nil, err
	}
	return &Decoder{format: c.format, dec: dec}, nil
}

func (c *Container) Close() error { return nil }

// Decoder wraps a live go-mp3.Decoder, translating the ReadSamples(pos)
// contract into Seek+Read calls.
type Decoder struct {
	format pcm.Format
	dec    *mp3.Decoder
	cursor int64
}

func (d *Decoder) Format() pcm.Format { return d.format }

func (d *Decoder) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	if pos != d.cursor {
		n, err := d.dec.Seek(pos, io.SeekStart)
		if err != nil {
			return 0, fmt.Errorf("mp3 seek: %w", err)
		}
		d.cursor = n
	}

	total := 0
	for total < max {
		n, err := d.dec.Read(buf[total:max])
		total += n
		d.cursor += int64(n)
		if err != nil {
			if err == io.EOF {
				break
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func (d *Decoder) Close() error { return nil }
