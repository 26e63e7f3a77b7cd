package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adamancini/forceupdate/internal/output"
	"github.com/adamancini/forceupdate/pkg/forceupdate"
)

func newWatchCmd() *cobra.Command {
	var (
		interval  time.Duration
		count     int
		installed string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check periodically and print force update events",
		Long: `Watch runs an update check immediately and then once per interval, printing
every force update event as it is published. It stops on interrupt or after
--count checks.

Examples:
  forceupdate watch                          # Interval from the Forcefile (default 30m)
  forceupdate watch --interval 5m -o json    # One JSON event per line
  forceupdate watch --count 3                # Stop after three checks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			forcefile, err := loadForcefile()
			if err != nil {
				return err
			}
			if interval == 0 {
				if interval, err = forcefile.WatchInterval(); err != nil {
					return err
				}
			}

			w, err := newWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			controller, err := newController(forcefile, installed)
			if err != nil {
				return err
			}
			defer controller.Close()

			return runWatch(ctx, controller, w, interval, count)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between checks (overrides the Forcefile)")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many checks (0 runs until interrupted)")
	cmd.Flags().StringVar(&installed, "installed", "", "Installed version to check (overrides the Forcefile)")

	return cmd
}

// runWatch checks on a constant ticker and streams events to w until ctx is
// done or count checks have completed.
func runWatch(ctx context.Context, controller *forceupdate.Controller, w *output.Writer, interval time.Duration, count int) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive (got %s)", interval)
	}
	if count < 0 {
		return fmt.Errorf("count must not be negative (got %d)", count)
	}

	sub := controller.Subscribe()
	defer controller.Unsubscribe(sub)

	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	defer ticker.Stop()

	checks := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := w.Stream(event); err != nil {
				return err
			}

		case _, ok := <-ticker.C:
			if !ok {
				return nil
			}
			snap, err := controller.CheckForUpdate(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("update check failed: %w", err)
			}
			checks++
			log.WithFields(log.Fields{
				"check":     checks,
				"force":     snap.ForceUpdateRequired,
				"update":    snap.UpdateAvailable,
				"minimum":   displayVersion(snap.MinimumRequiredVersion),
				"installed": displayVersion(snap.InstalledVersion),
			}).Debug("watch check completed")

			if count > 0 && checks >= count {
				return drainEvents(sub, w)
			}
		}
	}
}

// drainEvents writes the events already buffered for sub.
func drainEvents(sub *forceupdate.Subscription, w *output.Writer) error {
	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := w.Stream(event); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
