package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/taptone/pkg/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the audio input devices",
	Long: `List the PortAudio input devices with their index. Either the index or a
prefix of the name can be passed to listen --device.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := capture.ListInputDevices()
	if err != nil {
		return fmt.Errorf("failed to list input devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Printf("%sNo input devices found%s\n", ColorYellow, ColorReset)
		return nil
	}

	printSection("INPUT DEVICES")
	for _, d := range devices {
		printKeyValue(fmt.Sprintf("%3d", d.Index), ColorBold+d.Name+ColorReset)
		printKeyValue(strings.Repeat(" ", 5)+"Channels", fmt.Sprintf("%d", d.Channels))
		printKeyValue(strings.Repeat(" ", 5)+"Sample Rate", fmt.Sprintf("%.0f Hz", d.SampleRate))
	}
	return nil
}
