package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"titleCountdown/internal/domain"
)

func PreviewCmd() *cobra.Command {
	var (
		title     string
		remaining string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Args:  cobra.ExactArgs(0),
		Short: "Prints the title that would be sent for the given remaining time.",
		Example: `  title-countdown preview --title "Hello World — Stream ends 01:00:00" --remaining 59m30s
  Hello World — Stream ends 00:59:30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseRemaining(remaining)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), domain.ComposeTitle(title, d))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "current stream title")
	cmd.Flags().StringVar(&remaining, "remaining", "1h", "time left, as a Go duration (90m) or HH:MM:SS")

	return cmd
}

func parseRemaining(s string) (time.Duration, error) {
	var h, m, sec int
	if n, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err == nil && n == 3 {
		if h < 0 || m < 0 || m > 59 || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("preview: %q is not a valid HH:MM:SS value", s)
		}
		return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("preview: parse remaining: %w", err)
	}
	return d, nil
}
