package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	githash "github.com/ahrav/go-githash"
)

var keysCmd = &cobra.Command{
	Use:   "keys <dir>...",
	Short: "Fingerprint several directories in parallel",
	Long:  "Stage and fingerprint each directory's whole tree concurrently, printing one digest per directory.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKeys,
}

func init() {
	keysCmd.Flags().String("hash", "sha1", "digest algorithm: sha1, sha256 or sha512")
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	opts, err := hasherOpts(cmd)
	if err != nil {
		return err
	}
	repoOpts, err := repoOptions()
	if err != nil {
		return err
	}
	opts = append(opts, githash.WithRepoOptions(repoOpts...))

	digests, err := githash.HashDirs(cmd.Context(), args, nil, opts...)
	if err != nil {
		return err
	}
	for _, dir := range slices.Sorted(maps.Keys(digests)) {
		fmt.Printf("%s  %s\n", digests[dir], dir)
	}
	return nil
}
