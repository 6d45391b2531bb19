// Package mod implements a tracker-module Container/BaseDecoder on
// top of quasilyte/xm, the only tracker playback library available in
// the reference pack. xm plays the XM format, a superset dialect of
// the legacy ProTracker .mod this spec names; see DESIGN.md for the
// caveat. Like MIDI, tracker playback has no general random access:
// ReadSamples only honors pos == 0 (restart), otherwise continuing
// sequentially, per spec.md's allowance for formats without seek.
package mod

import (
	"bytes"
	"os"

	"github.com/quasilyte/xm"
	"github.com/quasilyte/xm/xmfile"

	"github.com/kestrelsound/jukebox/pkg/container"
	"github.com/kestrelsound/jukebox/pkg/pcm"
)

func init() {
	container.RegisterFormat(".xm", Open)
}

const sampleRate = 44100

type Container struct {
	module *xmfile.Module
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

	m, err := xmfile.Load(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	return &Container{
		module: m,
		format: pcm.Format{
			Channels:      2,
			SampleRate:    sampleRate,
			BitsPerSample: 16,
			DataSize:      0, // unknown length: tracker songs loop/end via pattern logic, not a byte count
		},
	}, nil
}

func (c *Container) Format() pcm.Format { return c.format }

func (c *Container) MakeDecoder() (container.BaseDecoder, error) {
	stream := xm.NewStream()
	if err := stream.LoadModule(c.module, xm.LoadModuleConfig{SampleRate: sampleRate}); err != nil {
		return nil, err
	}
	return &Decoder{format: c.format, stream: stream}, nil
}

func (c *Container) Close() error { return nil }

type Decoder struct {
	format pcm.Format
	stream *xm.Stream
	cursor int64
}

func (d *Decoder) Format() pcm.Format { return d.format }

func (d *Decoder) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	if pos == 0 && d.cursor != 0 {
		d.stream.Rewind()
		d.cursor = 0
	}

	n, err := d.stream.Read(buf[:max])
	d.cursor += int64(n)
	if err != nil {
		return n, nil // EOF: end of song, producer interprets a short/zero read as completion
	}
	return n, nil
}

func (d *Decoder) Close() error { return nil }
