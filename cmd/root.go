package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appName   = "taptone"
	envPrefix = "TAPTONE"
)

// globalOptions holds the persistent flags shared by every subcommand
type globalOptions struct {
	configFile   string
	configDir    string
	dataDir      string
	verbose      bool
	logLevel     string
	outputFormat string
}

var opts globalOptions

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Guitar tap tone spectrum analyzer",
	Long: `Analyze the resonances of a guitar top, back or body from the sound of a tap.

The input is captured continuously and the newest chunk is analyzed every tick.
Chunks loud enough to clear the threshold replace the displayed spectrum, and
their interpolated peaks inside the frequency window are reported.

Key features:
- Live capture through PortAudio or an external recorder (arecord, ffmpeg)
- Offline analysis of WAV recordings
- Sub-bin peak frequencies by parabolic interpolation
- Averaging of several taps with automatic hold
- Live event stream over WebSocket
- Settings files with live reload`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return syncFlags(cmd, viper.GetViper())
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(readConfig)

	pf := rootCmd.PersistentFlags()

	pf.StringVar(&opts.configFile, "config", "",
		"config file (default is $HOME/.config/taptone/taptone.yaml)")
	pf.StringVar(&opts.configDir, "config-dir", "",
		"config directory (default is $HOME/.config/taptone)")
	pf.StringVar(&opts.dataDir, "data-dir", "",
		"data directory (default is $HOME/.local/share/taptone)")

	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.outputFormat, "format", "o", "table", "report format (json, table, csv, yaml)")

	pf.Int("window-length", 16384, "analysis window length in samples, also the capture chunk size")
	pf.Int("fft-size", 0, "FFT size, a power of two (default is the next power of two of the window length)")
	pf.String("window", "blackman",
		"window function (blackman, hann, hamming, blackman_harris, bartlett, rectangular, welch)")

	for key, flag := range map[string]string{
		"verbose":                  "verbose",
		"log_level":                "log-level",
		"output_format":            "format",
		"config_dir":               "config-dir",
		"data_dir":                 "data-dir",
		"analysis.window_length":   "window-length",
		"analysis.fft_size":        "fft-size",
		"analysis.window_function": "window",
	} {
		viper.BindPFlag(key, pf.Lookup(flag))
	}
}

// configSearchPaths lists the directories searched for taptone.yaml, most
// specific first
func configSearchPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(home, ".config", appName),
		home,
		filepath.Join("/etc", appName),
		"./configs",
	}, nil
}

// readConfig loads the config file and enables TAPTONE_* environment overrides
func readConfig() {
	if opts.configFile != "" {
		viper.SetConfigFile(opts.configFile)
	} else {
		paths, err := configSearchPaths()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		for _, p := range paths {
			viper.AddConfigPath(p)
		}
		viper.SetConfigName(appName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	switch {
	case err == nil:
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	case opts.configFile != "":
		// An explicit file that cannot be read is reported; a missing default is not.
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", opts.configFile, err)
	}
}

// syncFlags gives every command flag a TAPTONE_<FLAG> environment variable and
// copies a value viper knows about into flags the user left unset, so Changed
// reflects both sources.
func syncFlags(cmd *cobra.Command, v *viper.Viper) error {
	var errs []error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		env := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if err := v.BindEnv(f.Name, env); err != nil {
			errs = append(errs, err)
			return
		}

		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := cmd.Flags().Set(f.Name, fmt.Sprint(v.Get(f.Name))); err != nil {
			errs = append(errs, fmt.Errorf("flag --%s: %w", f.Name, err))
		}
	})

	return errors.Join(errs...)
}
