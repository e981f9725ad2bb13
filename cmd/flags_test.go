package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addSessionFlags(cmd)
	cmd.Flags().StringP("format", "o", "table", "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestNewAppContextOverrides(t *testing.T) {
	t.Run("no tracker flags leave overrides empty", func(t *testing.T) {
		ctx, err := newAppContext(newSessionCommand(t, "--settings", "s.yaml", "-q"))
		require.NoError(t, err)

		assert.Equal(t, "s.yaml", ctx.SettingsFile)
		assert.True(t, ctx.Quiet)
		assert.Empty(t, ctx.OutputFormat)
		assert.Nil(t, ctx.Overrides.ThresholdPercent)
		assert.Nil(t, ctx.Overrides.Window)
		assert.Nil(t, ctx.Overrides.Averaging)
		assert.Nil(t, ctx.Overrides.MaxAverages)
		assert.Nil(t, ctx.Overrides.Hold)
	})

	t.Run("explicit flags become overrides", func(t *testing.T) {
		ctx, err := newAppContext(newSessionCommand(t,
			"--threshold", "35", "--min-freq", "70", "--max-freq", "400",
			"--averaging", "--max-averages", "4", "--hold"))
		require.NoError(t, err)

		require.NotNil(t, ctx.Overrides.ThresholdPercent)
		assert.Equal(t, 35, *ctx.Overrides.ThresholdPercent)
		require.NotNil(t, ctx.Overrides.Window)
		assert.Equal(t, 70.0, ctx.Overrides.Window.Min)
		assert.Equal(t, 400.0, ctx.Overrides.Window.Max)
		require.NotNil(t, ctx.Overrides.Averaging)
		assert.True(t, *ctx.Overrides.Averaging)
		require.NotNil(t, ctx.Overrides.MaxAverages)
		assert.Equal(t, 4, *ctx.Overrides.MaxAverages)
		require.NotNil(t, ctx.Overrides.Hold)
		assert.True(t, *ctx.Overrides.Hold)
	})

	t.Run("half a frequency window is rejected", func(t *testing.T) {
		_, err := newAppContext(newSessionCommand(t, "--min-freq", "70"))
		assert.Error(t, err)
	})

	t.Run("explicit format is passed through", func(t *testing.T) {
		prev := opts.outputFormat
		defer func() { opts.outputFormat = prev }()
		opts.outputFormat = "json"

		ctx, err := newAppContext(newSessionCommand(t, "-o", "json"))
		require.NoError(t, err)
		assert.Equal(t, "json", ctx.OutputFormat)
	})
}
