package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pirdfy/pirdfy-go/cmd/status"
	"github.com/pirdfy/pirdfy-go/cmd/watch"
	"github.com/pirdfy/pirdfy-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pirdfy",
		Short: "Pirdfy bird feeder camera CLI",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		watch.Command(settings),
		status.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64VarP(&settings.Detection.Threshold, "threshold", "t", viper.GetFloat64("detection.threshold"), "Confidence threshold for qualifying detections")
	rootCmd.PersistentFlags().IntVarP(&settings.Capture.Interval, "interval", "i", viper.GetInt("capture.interval"), "Capture interval in seconds")
	rootCmd.PersistentFlags().StringVar(&settings.Storage.DataPath, "datapath", viper.GetString("storage.datapath"), "Base directory for photos, crops, videos and the catalog")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
