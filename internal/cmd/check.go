package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adamancini/forceupdate/pkg/forceupdate"
)

// ErrForceUpdateRequired is returned by check --fail-on-force.
var ErrForceUpdateRequired = errors.New("force update required")

func newCheckCmd() *cobra.Command {
	var (
		failOnForce bool
		installed   string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one update check",
		Long: `Check fetches the marketplace listing and the remote manifest once and
reports the installed, marketplace and minimum required versions.

Examples:
  forceupdate check                          # Human readable report
  forceupdate check -o json                  # Snapshot as JSON
  forceupdate check --installed 1.2.0        # Check on behalf of a given version
  forceupdate check --fail-on-force          # Exit non-zero when an update is forced`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), installed, failOnForce)
		},
	}

	cmd.Flags().BoolVar(&failOnForce, "fail-on-force", false, "Exit non-zero when a force update is required")
	cmd.Flags().StringVar(&installed, "installed", "", "Installed version to check (overrides the Forcefile)")

	return cmd
}

// runCheck executes a single check and writes the resulting snapshot.
func runCheck(ctx context.Context, stdout io.Writer, installed string, failOnForce bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	w, err := newWriter(stdout)
	if err != nil {
		return err
	}

	forcefile, err := loadForcefile()
	if err != nil {
		return err
	}

	controller, err := newController(forcefile, installed)
	if err != nil {
		return err
	}
	defer controller.Close()

	snap, err := controller.CheckForUpdate(ctx)
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}

	if err := w.Write(snap); err != nil {
		return err
	}

	if snap.ForceUpdateRequired && failOnForce {
		return fmt.Errorf("%w: installed %s, minimum %s",
			ErrForceUpdateRequired, displayVersion(snap.InstalledVersion), displayVersion(snap.MinimumRequiredVersion))
	}
	return nil
}

func displayVersion(v *forceupdate.Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}
