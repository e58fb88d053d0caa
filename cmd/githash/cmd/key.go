package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	githash "github.com/ahrav/go-githash"
)

var keyCmd = &cobra.Command{
	Use:   "key <dir> [op...]",
	Short: "Fingerprint chosen files and trees",
	Long: `Fold staged entries into one digest. Operations apply in the order given:

  file:<path>        fold one file's entry line
  tree:<prefix>      fold the listing of a whole subtree
  meta:<key>=<value> record metadata, folded after all positional folds
                     in ascending key order

With no operations the whole tree is folded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKey,
}

func init() {
	keyCmd.Flags().String("hash", "sha1", "digest algorithm: sha1, sha256 or sha512")
	rootCmd.AddCommand(keyCmd)
}

func runKey(cmd *cobra.Command, args []string) error {
	opts, err := hasherOpts(cmd)
	if err != nil {
		return err
	}
	r, err := openRepo(args[0])
	if err != nil {
		return err
	}
	if err := r.Synchronize(cmd.Context()); err != nil {
		return err
	}

	h := githash.NewHasherFromRepo(r, opts...)
	if len(args) == 1 {
		if err := h.AddTree(""); err != nil {
			return err
		}
	}
	for _, op := range args[1:] {
		if err := applyOp(h, op); err != nil {
			return err
		}
	}
	fmt.Println(h.Digest())
	return nil
}

func applyOp(h *githash.Hasher, op string) error {
	kind, rest, ok := strings.Cut(op, ":")
	if !ok {
		return fmt.Errorf("malformed operation %q, want file:..., tree:... or meta:...", op)
	}
	switch kind {
	case "file":
		return h.AddFile(rest)
	case "tree":
		return h.AddTree(rest)
	case "meta":
		k, v, ok := strings.Cut(rest, "=")
		if !ok {
			return fmt.Errorf("malformed metadata %q, want meta:<key>=<value>", op)
		}
		h.AddMetadata(k, v)
		return nil
	default:
		return fmt.Errorf("unknown operation kind %q in %q", kind, op)
	}
}

func hasherOpts(cmd *cobra.Command) ([]githash.HasherOption, error) {
	name, err := cmd.Flags().GetString("hash")
	if err != nil {
		return nil, err
	}
	fn, err := githash.HashByName(name)
	if err != nil {
		return nil, err
	}
	return []githash.HasherOption{githash.WithHashFunc(fn)}, nil
}
