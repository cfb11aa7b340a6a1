package status

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pirdfy/pirdfy-go/internal/conf"
	"github.com/pirdfy/pirdfy-go/internal/datastore"
)

const recentLimit = 10

// Command creates the command that prints camera states and recent activity
// from the catalog.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show camera states and recent detections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings, cmd)
		},
	}
}

func run(settings *conf.Settings, cmd *cobra.Command) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no catalog output enabled, enable output.sqlite or output.mysql")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "CAMERA\tNAME\tMODE\tFAILURES\tLAST CAPTURE")
	for _, cam := range settings.Capture.Cameras {
		st, err := store.GetCameraStatus(cam.ID)
		if err != nil {
			fmt.Fprintf(w, "%d\t%s\t-\t-\t-\n", cam.ID, cam.Name)
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			st.CameraID, st.Name, st.Mode, st.ConsecutiveFailures,
			formatTime(st.LastCaptureAt))
	}
	w.Flush()

	detections, err := store.RecentDetections(recentLimit)
	if err != nil {
		return fmt.Errorf("reading recent detections: %w", err)
	}
	fmt.Fprintf(out, "\nRecent detections (%d):\n", len(detections))
	for _, d := range detections {
		fmt.Fprintf(out, "  %s cam%d %s %.2f\n",
			d.DetectedAt.Format(time.RFC3339), d.CameraID, d.Species, d.Confidence)
	}

	sessions, err := store.RecentVideoSessions(recentLimit)
	if err != nil {
		return fmt.Errorf("reading recent video sessions: %w", err)
	}
	fmt.Fprintf(out, "\nRecent video sessions (%d):\n", len(sessions))
	for _, s := range sessions {
		state := "open"
		if s.EndedAt != nil {
			state = fmt.Sprintf("closed %s", s.EndedAt.Sub(s.StartedAt).Round(time.Second))
		}
		fmt.Fprintf(out, "  %s cam%d %s %s\n",
			s.StartedAt.Format(time.RFC3339), s.CameraID, state, s.Path)
	}

	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
