package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kestrelsound/jukebox/pkg/container"
	_ "github.com/kestrelsound/jukebox/pkg/container/flac"
	_ "github.com/kestrelsound/jukebox/pkg/container/midi"
	_ "github.com/kestrelsound/jukebox/pkg/container/mod"
	_ "github.com/kestrelsound/jukebox/pkg/container/mp3"
	_ "github.com/kestrelsound/jukebox/pkg/container/vorbis"
	_ "github.com/kestrelsound/jukebox/pkg/container/wav"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Print a file's decoded audio format",
	Long: `Open a file through the container factory and print its channel
count, sample rate, bit depth, data size, and computed duration, without
decoding or playing any audio.`,
	Args: cobra.ExactArgs(1),
	Run:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) {
	path := args[0]

	c, err := container.Open(path)
	if err != nil {
		slog.Error("Failed to open container", "path", path, "error", err)
		os.Exit(1)
	}
	defer c.Close()

	f := c.Format()
	var duration float64
	if bps := f.BytesPerSecond(); bps > 0 && f.DataSize > 0 {
		duration = float64(f.DataSize) / float64(bps)
	}

	fmt.Printf("%s\n", path)
	fmt.Printf("  channels:        %d\n", f.Channels)
	fmt.Printf("  sample rate:     %d Hz\n", f.SampleRate)
	fmt.Printf("  bits per sample: %d\n", f.BitsPerSample)
	fmt.Printf("  data size:       %d bytes\n", f.DataSize)
	if duration > 0 {
		fmt.Printf("  duration:        %.2fs\n", duration)
	}
}
