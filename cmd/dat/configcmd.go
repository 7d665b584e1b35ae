package dat

import (
	"fmt"
	"os"

	"github.com/devaudit/dat/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type configInitFlags struct {
	output          string
	force           bool
	maxLines        int
	maxSize         int64
	safe            bool
	threads         int
	rate            float64
	policy          string
	failOn          string
	noColor         bool
	defaultExcludes bool
}

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}

	f := &configInitFlags{}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a .dat.yml with the selected options",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, f)
		},
	}
	initCmd.Flags().StringVar(&f.output, "output", config.LocalNames[0], "output file path")
	initCmd.Flags().BoolVar(&f.force, "force", false, "overwrite an existing file")
	initCmd.Flags().IntVar(&f.maxLines, "max-lines", 1000, "safe-mode line limit")
	initCmd.Flags().Int64Var(&f.maxSize, "max-size", 10<<20, "safe-mode size limit in bytes")
	initCmd.Flags().BoolVar(&f.safe, "safe", true, "enable safe mode")
	initCmd.Flags().IntVar(&f.threads, "threads", 0, "worker threads (0=GOMAXPROCS)")
	initCmd.Flags().Float64Var(&f.rate, "rate", 0, "max files opened per second (0 = unlimited)")
	initCmd.Flags().StringVar(&f.policy, "policy", "", "policy schema file")
	initCmd.Flags().StringVar(&f.failOn, "fail-on", "", "default fail threshold")
	initCmd.Flags().BoolVar(&f.noColor, "no-color", false, "disable color output by default")
	initCmd.Flags().BoolVar(&f.defaultExcludes, "default-excludes", true, "enable default ignore patterns")
	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}

func runConfigInit(cmd *cobra.Command, f *configInitFlags) error {
	if _, err := os.Stat(f.output); err == nil && !f.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", f.output)
	}
	fc := config.FileConfig{
		Ignore:          []string{},
		MaxLines:        intPtr(f.maxLines),
		MaxSize:         int64Ptr(f.maxSize),
		Safe:            boolPtr(f.safe),
		DefaultExcludes: boolPtr(f.defaultExcludes),
		Policy:          strPtr(f.policy),
		FailOn:          strPtr(f.failOn),
		NoColor:         boolPtr(f.noColor),
	}
	if f.threads != 0 {
		fc.Threads = intPtr(f.threads)
	}
	if f.rate != 0 {
		fc.Rate = floatPtr(f.rate)
	}

	b, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.output, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", f.output)
	return nil
}
