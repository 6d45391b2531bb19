// Package vorbis implements the Ogg Vorbis Container and BaseDecoder
// on top of jfreymuth/oggvorbis, whose Reader exposes a native
// sample-granular SetPosition over a seekable source — used directly
// instead of re-deriving a seek table, per DESIGN.md's Open Question
// #2. Vorbis decodes to float32 samples; this decoder converts them
// to 16-bit PCM so every stage downstream sees the same integer
// sample model as WAV/MP3/FLAC.
package vorbis

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/kestrelsound/jukebox/pkg/container"
	"github.com/kestrelsound/jukebox/pkg/pcm"
)

func init() {
	container.RegisterFormat(".ogg", Open)
}

type Container struct {
	raw    []byte
	format pcm.Format
}

func Open(path string) (container.Container, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, container.ErrNotFound
		}
		return nil, err
	}

	r, err := oggvorbis.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", container.ErrMalformedHeader, err)
	}

	channels := r.Channels()
	dataSize := int64(0)
	if n := r.Length(); n > 0 {
		dataSize = n * int64(channels) * 2
	}

	return &Container{
		raw: raw,
		format: pcm.Format{
			Channels:      channels,
			SampleRate:    r.SampleRate(),
			BitsPerSample: 16,
			DataSize:      dataSize,
		},
	}, nil
}

func (c *Container) Format() pcm.Format { return c.format }

func (c *Container) MakeDecoder() (container.BaseDecoder, error) {
	r, err := oggvorbis.NewReader(bytes.NewReader(c.raw))
	if err != nil {
		return nil, err
	}
	return &Decoder{format: c.format, r: r}, nil
}

func (c *Container) Close() error { return nil }

type Decoder struct {
	format pcm.Format
	r      *oggvorbis.Reader
	cursor int64
	scratch []float32
}

func (d *Decoder) Format() pcm.Format { return d.format }

func (d *Decoder) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	frameSize := int64(d.format.FrameSize())
	if frameSize > 0 && pos != d.cursor {
		sampleIndex := pos / frameSize
		if err := d.r.SetPosition(sampleIndex); err != nil {
			return 0, fmt.Errorf("vorbis seek: %w", err)
		}
		d.cursor = pos
	}

	wantFloats := (max / 2) // one int16 per float32 sample
	if wantFloats == 0 {
		return 0, nil
	}
	if cap(d.scratch) < wantFloats {
		d.scratch = make([]float32, wantFloats)
	}
	n, err := d.r.Read(d.scratch[:wantFloats])
	if n == 0 {
		return 0, nil
	}
	_ = err // io.EOF just means fewer samples; treat as a short read

	for i := 0; i < n; i++ {
		v := d.scratch[i]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v*32767)))
	}
	produced := n * 2
	d.cursor += int64(produced)
	return produced, nil
}

func (d *Decoder) Close() error { return nil }
