package audioframe

import "testing"

func TestAudioFrameZeroValueHasNoSamples(t *testing.T) {
	var af AudioFrame
	if af.SamplesCount != 0 || af.Audio != nil {
		t.Errorf("expected zero-value frame to carry no samples, got %+v", af)
	}
}

func TestAudioFrameCarriesFormat(t *testing.T) {
	af := AudioFrame{
		Format:       FrameFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 16},
		SamplesCount: 128,
		Audio:        make([]byte, 128*2*2),
	}
	if got, want := len(af.Audio), int(af.SamplesCount)*int(af.Format.Channels)*int(af.Format.BitsPerSample)/8; got != want {
		t.Errorf("Audio length %d does not match SamplesCount*Channels*bytesPerSample %d", got, want)
	}
}
