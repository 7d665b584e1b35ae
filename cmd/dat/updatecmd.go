package dat

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/devaudit/dat/internal/update"
	"github.com/spf13/cobra"
)

func newUpdateCmd() *cobra.Command {
	var checkOnly bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update dat to the latest release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if checkOnly {
				latest, newer, err := update.Check(version, false)
				if err != nil {
					return err
				}
				if newer {
					fmt.Fprintf(out, "new version available: v%s (current v%s)\n", latest, version)
				} else {
					fmt.Fprintf(out, "dat v%s is up to date\n", version)
				}
				return nil
			}
			installed, err := update.SelfUpdate(currentVersion())
			if err != nil {
				return fmt.Errorf("self-update: %w", err)
			}
			fmt.Fprintf(out, "dat is now at v%s\n", installed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check", false, "only report whether a newer release exists")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dat v%s (%s, %s/%s)\n", currentVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// currentVersion prefers the linker-set version and falls back to the VCS
// revision recorded in the build info.
func currentVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "0.0.0"
}
