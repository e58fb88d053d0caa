// diff.go – line diffs between two rendered listings
package githash

import (
	"bytes"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// DiffListings compares two rendered listings line by line and returns the
// entry lines present only in after (added) and only in before (removed).
//
// Because listings are sorted and one line describes one tracked file, the
// result reads as a set difference: a file whose content changed appears
// once on each side, old line removed, new line added. Identical listings
// return nil, nil.
func DiffListings(before, after []byte) (added, removed [][]byte) {
	if bytes.Equal(before, after) {
		return nil, nil
	}

	a, b := btostr(before), btostr(after)
	edits := myers.ComputeEdits(span.URIFromPath(""), a, b)
	u := gotextdiff.ToUnified("", "", a, edits)

	for _, h := range u.Hunks {
		for _, ln := range h.Lines {
			text := strings.TrimSuffix(ln.Content, "\n")
			if text == "" {
				// Listings have no blank lines; anything empty here is a
				// split artifact of diffing against an empty input.
				continue
			}
			switch ln.Kind {
			case gotextdiff.Insert:
				added = append(added, []byte(text))
			case gotextdiff.Delete:
				removed = append(removed, []byte(text))
			}
		}
	}
	return added, removed
}
