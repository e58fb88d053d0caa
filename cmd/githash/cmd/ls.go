package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	githash "github.com/ahrav/go-githash"
)

var lsCmd = &cobra.Command{
	Use:   "ls <dir> [prefix]",
	Short: "List staged entries",
	Long:  "Print the canonical listing of a directory's staged entries, optionally narrowed to a subtree.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	r, err := openRepo(args[0])
	if err != nil {
		return err
	}
	if err := r.Synchronize(cmd.Context()); err != nil {
		return err
	}

	prefix := ""
	if len(args) > 1 {
		prefix = args[1]
	}
	buf, err := r.Listing(prefix)
	if err != nil {
		var nsf *githash.NoSuchFileError
		if errors.As(err, &nsf) {
			fmt.Println("(no entries)")
			return nil
		}
		return err
	}
	os.Stdout.Write(buf)
	fmt.Println()
	return nil
}
