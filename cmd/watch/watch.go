package watch

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pirdfy/pirdfy-go/internal/conf"
	"github.com/pirdfy/pirdfy-go/internal/pipeline"
)

// Command creates the command that runs the continuous capture loop.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the feeder in continuous capture mode",
		Long:  "Start the capture loop on all enabled cameras, detecting birds and escalating to video.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.Watch(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the watch command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Capture.PhotoPolicy, "photopolicy", viper.GetString("capture.photopolicy"), "Photo persistence policy (\"always\" or \"detections\")")
	cmd.Flags().BoolVar(&settings.Video.Enabled, "video", viper.GetBool("video.enabled"), "Escalate to video recording on qualifying detections")
	cmd.Flags().IntVar(&settings.Video.Duration, "videoduration", viper.GetInt("video.duration"), "Video recording duration in seconds")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
