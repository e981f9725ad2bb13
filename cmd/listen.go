package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/taptone/internal/app"
)

// listenCmd represents the live capture command
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Capture taps from the audio input and report their peaks",
	Long: `Capture the audio input continuously and report the peaks of every tap
that clears the threshold.

Each committed tap is printed to stderr. When the session ends (interrupt,
--duration, or the end of a --file) the retained peaks and loop statistics are
written in the selected output format.

Examples:
  # Listen on the default input device
  taptone listen

  # Pick a device by index or name prefix and only report 70-400 Hz
  taptone listen --device "USB Audio" --min-freq 70 --max-freq 400

  # Use arecord/ffmpeg instead of PortAudio
  taptone listen --backend command

  # Average four taps, then hold, and stream events to a browser
  taptone listen --averaging --max-averages 4 --serve

  # Replay a recording at real time
  taptone listen --file tap.wav`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	addSessionFlags(listenCmd)

	listenCmd.Flags().String("backend", "portaudio", "capture backend (portaudio, command)")
	listenCmd.Flags().String("device", "", "input device index or name prefix (default device when empty)")
	listenCmd.Flags().Int("sample-rate", 44100, "capture sample rate in Hz")
	listenCmd.Flags().String("file", "", "play a WAV file instead of capturing")
	listenCmd.Flags().Duration("duration", 0, "stop after this long (default runs until interrupted)")
	listenCmd.Flags().Duration("tick", 100*time.Millisecond, "analysis interval")
	listenCmd.Flags().Bool("serve", false, "stream events over WebSocket")
	listenCmd.Flags().String("addr", "127.0.0.1:8642", "WebSocket listen address")
	listenCmd.Flags().Bool("watch", false, "reload tracker settings when the config or settings file changes")

	viper.BindPFlag("capture.backend", listenCmd.Flags().Lookup("backend"))
	viper.BindPFlag("capture.device", listenCmd.Flags().Lookup("device"))
	viper.BindPFlag("capture.sample_rate", listenCmd.Flags().Lookup("sample-rate"))
	viper.BindPFlag("tracker.tick_interval", listenCmd.Flags().Lookup("tick"))
	viper.BindPFlag("server.enabled", listenCmd.Flags().Lookup("serve"))
	viper.BindPFlag("server.addr", listenCmd.Flags().Lookup("addr"))
}

func runListen(cmd *cobra.Command, args []string) error {
	appCtx, err := newAppContext(cmd)
	if err != nil {
		return err
	}

	if appCtx.Duration, err = cmd.Flags().GetDuration("duration"); err != nil {
		return err
	}
	if appCtx.Watch, err = cmd.Flags().GetBool("watch"); err != nil {
		return err
	}
	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}

	tapApp, err := app.NewTapApp(appCtx)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	if err := tapApp.Listen(ctx, file); err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}
	return nil
}
