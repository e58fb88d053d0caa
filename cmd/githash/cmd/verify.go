package cmd

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	githash "github.com/ahrav/go-githash"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <dir>",
	Short: "Check staged content against its addresses",
	Long:  "Re-read every staged object and confirm its content still hashes to the address the snapshot records.",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	r, err := openRepo(args[0])
	if err != nil {
		return err
	}
	if err := r.Synchronize(cmd.Context()); err != nil {
		return err
	}

	err = r.Verify(cmd.Context())
	var ve *githash.VerifyError
	if errors.As(err, &ve) {
		for _, p := range slices.Sorted(maps.Keys(ve.Failed)) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, ve.Failed[p])
		}
		return fmt.Errorf("%d of %d entries failed verification", len(ve.Failed), r.Len())
	}
	if err != nil {
		return err
	}
	fmt.Printf("OK: %d entries verified\n", r.Len())
	return nil
}
