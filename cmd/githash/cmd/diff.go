package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	githash "github.com/ahrav/go-githash"
)

var diffCmd = &cobra.Command{
	Use:   "diff <dir-a> <dir-b> [prefix]",
	Short: "Compare the staged listings of two directories",
	Long: "Stage both directories and print the entry lines unique to each side.\n" +
		"A file that differs in content appears on both sides, once with each address.",
	Args: cobra.RangeArgs(2, 3),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	prefix := ""
	if len(args) > 2 {
		prefix = args[2]
	}

	before, err := stageListing(cmd, args[0], prefix)
	if err != nil {
		return err
	}
	after, err := stageListing(cmd, args[1], prefix)
	if err != nil {
		return err
	}

	added, removed := githash.DiffListings(before, after)
	for _, line := range removed {
		fmt.Printf("- %s\n", line)
	}
	for _, line := range added {
		fmt.Printf("+ %s\n", line)
	}
	return nil
}

// stageListing synchronizes dir and renders its listing at prefix. A prefix
// with no entries is reported as an empty listing rather than an error, so
// that diffing against a side missing the whole subtree still works.
func stageListing(cmd *cobra.Command, dir, prefix string) ([]byte, error) {
	r, err := openRepo(dir)
	if err != nil {
		return nil, err
	}
	if err := r.Synchronize(cmd.Context()); err != nil {
		return nil, err
	}
	buf, err := r.Listing(prefix)
	if err != nil {
		var nsf *githash.NoSuchFileError
		if errors.As(err, &nsf) {
			return nil, nil
		}
		return nil, err
	}
	return buf, nil
}
