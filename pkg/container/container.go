// Package container implements the Container and BaseDecoder layer:
// format-specific header parsing and the PCM-producing decoder that
// sits at the bottom of every decoder chain. Concrete formats live in
// the container/{wav,mp3,flac,vorbis,midi,mod} subpackages; Open
// dispatches to the right one by file extension, mirroring the
// teacher's decoder factory.
package container

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kestrelsound/jukebox/pkg/pcm"
)

// Sentinel errors surfaced synchronously from Open/MakeDecoder, per
// the load-time error contract: a Container either opens cleanly or
// fails with one of these, wrapped with the offending path/detail.
var (
	ErrNotFound           = errors.New("container: file not found")
	ErrMalformedHeader    = errors.New("container: malformed header")
	ErrUnsupportedFormat  = errors.New("container: unsupported format")
	ErrTooLarge           = errors.New("container: data size exceeds limit")
	ErrMissingSoundFont   = errors.New("container: no soundfont configured")
	ErrNotPCM             = errors.New("container: not PCM encoded")
)

// BaseDecoder is the bottom of every decoder chain (L1): a
// position-addressable PCM producer. ReadSamples fills buf with up to
// max bytes of decoded PCM starting at byte offset pos, returning
// the number of bytes actually produced (0 at end of stream). Formats
// without true random access (MOD, MIDI) support only pos == 0
// (restart) and otherwise treat pos as "continue from here."
type BaseDecoder interface {
	Format() pcm.Format
	ReadSamples(buf []byte, pos int64, max int) (int, error)
	Close() error
}

// Container is the L0 entity: it owns the parsed header/metadata and
// constructs the BaseDecoder that will actually produce samples.
type Container interface {
	Format() pcm.Format
	MakeDecoder() (BaseDecoder, error)
	Close() error
}

// Opener constructs a Container from a file path; each format
// subpackage registers one via RegisterFormat.
type Opener func(path string) (Container, error)

var registry = map[string]Opener{}

// RegisterFormat associates a lowercase file extension (including the
// leading dot, e.g. ".wav") with an Opener. Format subpackages call
// this from an init() func, the same self-registration pattern the
// teacher's factory.go expresses as a manual switch.
func RegisterFormat(ext string, open Opener) {
	registry[strings.ToLower(ext)] = open
}

// Open dispatches to the registered Opener for path's extension.
func Open(path string) (Container, error) {
	ext := strings.ToLower(filepath.Ext(path))
	open, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	c, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return c, nil
}
