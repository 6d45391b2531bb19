// Package audioframe defines the chunk type passed across the
// producer/real-time boundary in pkg/sink/paudio: a Sound's producer
// goroutine slices its PCM output into AudioFrames and hands them to
// an audioframeringbuffer, which the PortAudio callback drains on its
// own real-time thread. Frames never leave process memory, so there
// is no wire format here.
package audioframe

// FrameFormat mirrors the subset of pcm.Format a frame needs to carry
// alongside its audio so the callback can interpret raw bytes without
// reaching back into the Sound that produced them.
type FrameFormat struct {
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
}

// AudioFrame is one chunk of interleaved PCM audio plus enough format
// metadata to play it back. SamplesCount is frames, not bytes.
type AudioFrame struct {
	Format       FrameFormat
	SamplesCount uint16
	Audio        []byte
}
