// Package flac implements the FLAC Container and BaseDecoder on top
// of mewkiz/flac, which exposes a native sample-granular Seek on
// seekable sources — used directly instead of re-deriving a seek
// table, per DESIGN.md's Open Question #2.
package flac

import (
	"encoding/binary"
	"fmt"
	"os"

	goflac "github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/kestrelsound/jukebox/pkg/container"
	"github.com/kestrelsound/jukebox/pkg/pcm"
)

func init() {
	container.RegisterFormat(".flac", Open)
}

// Container records the source path; each MakeDecoder call reopens
// the file so cloned prototypes get independent decode state.
type Container struct {
	path   string
	format pcm.Format
}

// Open parses path's STREAMINFO block to recover the PCM format.
func Open(path string) (container.Container, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, container.ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	stream, err := goflac.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", container.ErrMalformedHeader, err)
	}
	defer stream.Close()

	info := stream.Info
	bytesPerSample := int64(info.BitsPerSample / 8)
	return &Container{
		path: path,
		format: pcm.Format{
			Channels:      int(info.NChannels),
			SampleRate:    int(info.SampleRate),
			BitsPerSample: int(info.BitsPerSample),
			DataSize:      int64(info.NSamples) * bytesPerSample * int64(info.NChannels),
		},
	}, nil
}

func (c *Container) Format() pcm.Format { return c.format }

func (c *Container) MakeDecoder() (container.BaseDecoder, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	stream, err := goflac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Decoder{format: c.format, file: f, stream: stream}, nil
}

func (c *Container) Close() error { return nil }

// Decoder wraps a live *flac.Stream, buffering one decoded frame at a
// time and serving ReadSamples out of it, reseeking via Stream.Seek
// when pos doesn't follow the previous read.
type Decoder struct {
	format pcm.Format
	file   *os.File
	stream *goflac.Stream

	pending    []byte
	pendingPos int64 // byte offset of pending[0] in the PCM stream
	cursor     int64
}

func (d *Decoder) Format() pcm.Format { return d.format }

func (d *Decoder) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	frameSize := int64(d.format.FrameSize())
	if pos != d.cursor {
		sampleNum := uint64(0)
		if frameSize > 0 {
			sampleNum = uint64(pos / frameSize)
		}
		if _, err := d.stream.Seek(sampleNum); err != nil {
			return 0, fmt.Errorf("flac seek: %w", err)
		}
		d.pending = nil
		d.cursor = pos
	}

	total := 0
	for total < max {
		if len(d.pending) == 0 {
			fr, err := d.stream.ParseNext()
			if err != nil {
				break // io.EOF or unrecoverable: report what we have
			}
			d.pending = packFrame(fr, d.format)
		}
		n := copy(buf[total:max], d.pending)
		d.pending = d.pending[n:]
		total += n
		d.cursor += int64(n)
	}
	return total, nil
}

func (d *Decoder) Close() error {
	d.stream.Close()
	return d.file.Close()
}

// packFrame interleaves a decoded FLAC frame's per-channel subframe
// samples into little-endian PCM bytes at the container's bit depth.
func packFrame(fr *frame.Frame, format pcm.Format) []byte {
	if len(fr.Subframes) == 0 {
		return nil
	}
	numSamples := len(fr.Subframes[0].Samples)
	bytesPerSample := format.BitsPerSample / 8
	out := make([]byte, numSamples*len(fr.Subframes)*bytesPerSample)

	off := 0
	for i := 0; i < numSamples; i++ {
		for ch := range fr.Subframes {
			v := fr.Subframes[ch].Samples[i]
			switch bytesPerSample {
			case 1:
				out[off] = byte(v)
			case 2:
				binary.LittleEndian.PutUint16(out[off:], uint16(int16(v)))
			case 3:
				out[off] = byte(v)
				out[off+1] = byte(v >> 8)
				out[off+2] = byte(v >> 16)
			default:
				binary.LittleEndian.PutUint32(out[off:], uint32(v))
			}
			off += bytesPerSample
		}
	}
	return out
}
