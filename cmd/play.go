package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrelsound/jukebox/pkg/container"
	_ "github.com/kestrelsound/jukebox/pkg/container/flac"
	_ "github.com/kestrelsound/jukebox/pkg/container/midi"
	_ "github.com/kestrelsound/jukebox/pkg/container/mod"
	_ "github.com/kestrelsound/jukebox/pkg/container/mp3"
	_ "github.com/kestrelsound/jukebox/pkg/container/vorbis"
	_ "github.com/kestrelsound/jukebox/pkg/container/wav"
	"github.com/kestrelsound/jukebox/pkg/engine"
	"github.com/kestrelsound/jukebox/pkg/mixer"
	"github.com/kestrelsound/jukebox/pkg/sink/paudio"
	"github.com/kestrelsound/jukebox/pkg/stage"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play an audio file",
	Long: `Decode a file through the container factory, wire the requested
DSP stages onto its decoder chain, and play it through a PortAudio sink.
Joint stereo, resolution, distortion, reverb and fade have flags here;
moving average and fade-on-stop do not.`,
	Args: cobra.ExactArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Int("device", 1, "PortAudio output device index")
	playCmd.Flags().Float64("volume", 1.0, "Playback volume, 0.0-1.0")
	playCmd.Flags().Bool("loop", false, "Loop playback")
	playCmd.Flags().Float64("distortion", 0, "Soft-clip distortion gain (0 disables)")
	playCmd.Flags().Float64("reverb", 0, "Reverb decay factor, 0-1 (0 disables)")
	playCmd.Flags().Int("reverb-delays", 4, "Number of reverb comb-filter delay lines")
	playCmd.Flags().Float64("fade-in", 0, "Fade-in duration in seconds")
	playCmd.Flags().Float64("fade-out", 0, "Fade-out duration in seconds")
	playCmd.Flags().Int("resolution", 0, "Target bit depth (0 keeps the source's)")
	playCmd.Flags().Bool("mono", false, "Mix stereo down to mono")
}

func runPlay(cmd *cobra.Command, args []string) {
	path := args[0]
	flags := cmd.Flags()

	device, _ := flags.GetInt("device")
	volume, _ := flags.GetFloat64("volume")
	loop, _ := flags.GetBool("loop")
	distortionGain, _ := flags.GetFloat64("distortion")
	reverbDecay, _ := flags.GetFloat64("reverb")
	reverbDelays, _ := flags.GetInt("reverb-delays")
	fadeIn, _ := flags.GetFloat64("fade-in")
	fadeOut, _ := flags.GetFloat64("fade-out")
	resolution, _ := flags.GetInt("resolution")
	mono, _ := flags.GetBool("mono")

	openBase := func() (container.Container, error) { return container.Open(path) }

	c, err := openBase()
	if err != nil {
		slog.Error("Failed to open container", "path", path, "error", err)
		os.Exit(1)
	}
	defer c.Close()

	base, err := c.MakeDecoder()
	if err != nil {
		slog.Error("Failed to create decoder", "path", path, "error", err)
		os.Exit(1)
	}

	chain := stage.NewChain(base)

	if mono {
		chain.WrapJointStereo()
	}
	if resolution > 0 {
		chain.WrapSampleResolution(resolution)
	}
	if distortionGain > 0 {
		chain.WrapDistortion(distortionGain)
	}
	if reverbDecay > 0 {
		chain.WrapReverb(20, reverbDecay, reverbDelays)
	}
	if fadeIn > 0 || fadeOut > 0 {
		chain.WrapFade(fadeIn, fadeOut)
	}

	snk, err := paudio.NewBlocking(chain.Format(), paudio.BlockingConfig{
		DeviceIndex:     device,
		FramesPerBuffer: 512,
		BufferSize:      256 * 1024,
	})
	if err != nil {
		slog.Error("Failed to open audio sink", "error", err)
		os.Exit(1)
	}
	defer snk.Close()

	reopen := func() (container.BaseDecoder, error) {
		oc, err := openBase()
		if err != nil {
			return nil, err
		}
		return oc.MakeDecoder()
	}

	s := engine.New(chain, snk, mixer.Default, reopen)
	s.SetFilename(path)
	s.SetVolume(volume)
	s.SetLoop(loop)

	slog.Info("Playing", "path", path, "format", chain.Format().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	s.Play()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-sigCh:
		s.Stop()
	}

	_ = chain.Close()
}
