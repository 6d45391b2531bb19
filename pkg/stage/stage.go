// Package stage implements the Decoder Chain (L2): a composable stack
// of DSP stages sitting on top of a container.BaseDecoder. Each Stage
// satisfies the same read_samples(buf, pos, max) contract as the
// BaseDecoder it wraps, which is what lets stages be stacked,
// inspected, peeled, and cloned without the caller needing to know
// how deep the stack is — the same decorator idea the original C++
// decoder expressed through inheritance, expressed here as Go
// interfaces instead, per the spec's own guidance to restructure that
// construct for an idiomatic Go port.
package stage

import (
	"github.com/kestrelsound/jukebox/pkg/container"
	"github.com/kestrelsound/jukebox/pkg/pcm"
)

// Stage is one link in the chain. Format() may differ from the layer
// below (JointStereo drops to mono, SampleResolution changes bit
// depth); every other field not overridden is expected to delegate to
// the layer below, which each stage's Format() implementation does
// explicitly.
type Stage interface {
	Format() pcm.Format
	ReadSamples(buf []byte, pos int64, max int) (int, error)
	Close() error
}

// baseStage adapts the bottom-of-stack BaseDecoder to the Stage
// interface so the chain can treat every layer uniformly.
type baseStage struct {
	base container.BaseDecoder
}

func (b *baseStage) Format() pcm.Format { return b.base.Format() }
func (b *baseStage) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	return b.base.ReadSamples(buf, pos, max)
}
func (b *baseStage) Close() error { return b.base.Close() }

// builder captures how a stage was constructed so Chain.Clone can
// rebuild the same stack of stages over a freshly opened base
// decoder, per spec.md's prototype-cloning requirement.
type builder func(below Stage) Stage

// Chain is the decoder chain: a base decoder plus zero or more
// stacked stages. The top of the stack is what Play()/ReadSamples
// callers actually read from.
type Chain struct {
	layers   []Stage
	builders []builder
}

// NewChain starts a chain with just the base decoder on it.
func NewChain(base container.BaseDecoder) *Chain {
	b := &baseStage{base: base}
	return &Chain{
		layers:   []Stage{b},
		builders: []builder{func(Stage) Stage { return b }},
	}
}

// Top returns the current top-of-stack Stage, the one ReadSamples
// calls should go through.
func (c *Chain) Top() Stage {
	return c.layers[len(c.layers)-1]
}

// wrap pushes a new stage on top of the chain. build receives the
// current top and must return a Stage that reads from it.
func (c *Chain) wrap(build builder) {
	below := c.Top()
	c.layers = append(c.layers, build(below))
	c.builders = append(c.builders, build)
}

// Peel pops the top stage off the chain. Peeling the base decoder
// itself is a no-op — the contract never leaves the chain empty.
func (c *Chain) Peel() {
	if len(c.layers) <= 1 {
		return
	}
	c.layers = c.layers[:len(c.layers)-1]
	c.builders = c.builders[:len(c.builders)-1]
}

// Depth reports how many stages (including the base) are on the
// chain.
func (c *Chain) Depth() int { return len(c.layers) }

// Clone deep-clones this chain's stage stack onto a freshly opened
// base decoder, giving an independent Sound instance the same effects
// stack without sharing any mutable state with the original.
func (c *Chain) Clone(freshBase container.BaseDecoder) *Chain {
	b := &baseStage{base: freshBase}
	nc := &Chain{
		layers:   []Stage{b},
		builders: []builder{c.builders[0]},
	}
	for _, build := range c.builders[1:] {
		nc.wrap(build)
	}
	return nc
}

func (c *Chain) ReadSamples(buf []byte, pos int64, max int) (int, error) {
	return c.Top().ReadSamples(buf, pos, max)
}

func (c *Chain) Format() pcm.Format { return c.Top().Format() }

func (c *Chain) Close() error {
	var err error
	for _, l := range c.layers {
		if cerr := l.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}
