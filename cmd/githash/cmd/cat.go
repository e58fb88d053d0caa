package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <dir> <path>",
	Short: "Print a file's staged content",
	Long:  "Read the staged content of one tracked file back out of the private object store.",
	Args:  cobra.ExactArgs(2),
	RunE:  runCat,
}

func init() {
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	r, err := openRepo(args[0])
	if err != nil {
		return err
	}
	if err := r.Synchronize(cmd.Context()); err != nil {
		return err
	}
	data, err := r.Blob(args[1])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
