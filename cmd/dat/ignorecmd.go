package dat

import (
	"fmt"

	"github.com/devaudit/dat/internal/ignore"
	"github.com/spf13/cobra"
)

func newIgnoreCmd() *cobra.Command {
	ignCmd := &cobra.Command{Use: "ignore", Short: "Manage the .datignore file"}

	var root string
	addCmd := &cobra.Command{
		Use:   "add <pattern>...",
		Short: "Append patterns to <root>/.datignore",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				changed, err := ignore.Append(root, p)
				if err != nil {
					return err
				}
				if changed {
					fmt.Fprintln(cmd.OutOrStdout(), "added", p)
				}
			}
			return nil
		},
	}
	addCmd.Flags().StringVarP(&root, "path", "p", ".", "scan root holding the ignore file")
	ignCmd.AddCommand(addCmd)
	return ignCmd
}
