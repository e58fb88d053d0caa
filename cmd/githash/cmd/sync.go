package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <dir>",
	Short: "Stage a directory's current content",
	Long:  "Synchronize the private index with the directory's current content and report the entry count.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	r, err := openRepo(args[0])
	if err != nil {
		return err
	}
	if err := r.Synchronize(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("%d entries staged in %s\n", r.Len(), r.Dir())
	return nil
}
