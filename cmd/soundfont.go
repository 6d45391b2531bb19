package cmd

import (
	"log/slog"
	"os"

	"github.com/kestrelsound/jukebox/pkg/container/midi"

	"github.com/spf13/cobra"
)

var soundfontCmd = &cobra.Command{
	Use:   "soundfont <path>",
	Short: "Set the process-wide MIDI SoundFont",
	Long: `Load a SoundFont (.sf2) file and set it as this process's MIDI
SoundFont. MIDI containers have no embedded instrument data, so MIDI
rendering needs one. The setting is held in memory only for the run of
this command and is not saved; later jukebox commands do not see it.`,
	Args: cobra.ExactArgs(1),
	Run:  runSoundfont,
}

func init() {
	rootCmd.AddCommand(soundfontCmd)
}

func runSoundfont(cmd *cobra.Command, args []string) {
	path := args[0]
	if err := midi.SetSoundFont(path); err != nil {
		slog.Error("Failed to set soundfont", "path", path, "error", err)
		os.Exit(1)
	}
	slog.Info("SoundFont configured", "path", path)
}
