package dat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/devaudit/dat/internal/config"
	"github.com/devaudit/dat/internal/logger"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	noColor       bool
	logLevel      string
	noUpdateCheck bool
}

// exitError carries a process exit code out of a command without calling
// os.Exit inside RunE.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// newRootCmd builds the full command tree.
func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "dat",
		Short:         "Audit a directory tree against a content policy",
		Long:          "dat walks a working tree, classifies files, matches their content against policy rules and writes a reproducible report that can be diffed against earlier runs.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetOutput(cmd.ErrOrStderr())
			gcfg, _ := config.LoadGlobal()
			logger.Init(pick(cmd.Flags().Changed("log-level"), g.logLevel, gcfg.LogLevel))
		},
	}
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colorized output")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	root.PersistentFlags().BoolVar(&g.noUpdateCheck, "no-update-check", false, "disable update check")

	root.AddCommand(
		newScanCmd(g),
		newDiffCmd(),
		newRulesCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newIgnoreCmd(),
		newUpdateCmd(),
		newVersionCmd(),
		newCompletionCmd(root),
	)
	return root
}

// Execute runs the dat CLI. It should be called by the main package.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(2)
}
