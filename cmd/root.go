package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jukebox",
	Short: "Audio playback and processing CLI",
	Long: `jukebox - a layered audio playback and processing library: container
parsing, a composable DSP decoder chain, a playback engine with a
real-time producer goroutine, and a PortAudio-backed sink.

Supported containers: WAV, MP3, FLAC, Ogg Vorbis, XM tracker modules
(.xm; ProTracker .mod files are not accepted), MIDI (with a configured
SoundFont).

Commands:
  - play: play a file with DSP stages wired onto the decoder chain
  - info: print a file's decoded format without playing it
  - transform: resample/convert a file to WAV
  - soundfont: set the process-wide MIDI SoundFont path`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
