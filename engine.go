// engine.go – strategies for reading the staged snapshot back out
package githash

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
)

// Engine selects how a Repo turns the staged index into entries after a
// synchronization.
type Engine int

const (
	// EngineIndex decodes the index file in process. This is the default:
	// one git invocation per Synchronize, no output parsing.
	EngineIndex Engine = iota

	// EngineLsFiles shells out to "git ls-files --stage" and parses its
	// NUL-terminated records. Slower, but delegates format knowledge to
	// git itself. Both engines produce identical snapshots.
	EngineLsFiles
)

func (e Engine) String() string {
	switch e {
	case EngineIndex:
		return "index"
	case EngineLsFiles:
		return "ls-files"
	default:
		return fmt.Sprintf("engine(%d)", int(e))
	}
}

func (r *Repo) loadEntries(ctx context.Context) ([]Entry, error) {
	switch r.engine {
	case EngineLsFiles:
		return r.lsFilesEntries(ctx)
	default:
		return readIndexFile(r.indexFile)
	}
}

func (r *Repo) lsFilesEntries(ctx context.Context) ([]Entry, error) {
	out, err := r.runGit(ctx, "ls-files", "--stage", "-z")
	if err != nil {
		return nil, err
	}
	return parseLsFiles(out)
}

// parseLsFiles decodes "ls-files --stage -z" output, one record per staged
// file: "<octal mode> <object> <stage>\t<path>" terminated by a NUL. The -z
// switch matters, without it git C-quotes unusual path bytes.
func parseLsFiles(out []byte) ([]Entry, error) {
	var entries []Entry
	for len(out) > 0 {
		rec := out
		if nul := bytes.IndexByte(out, 0); nul >= 0 {
			rec, out = out[:nul], out[nul+1:]
		} else {
			out = nil
		}
		if len(rec) == 0 {
			continue
		}

		tab := bytes.IndexByte(rec, '\t')
		if tab < 0 {
			return nil, fmt.Errorf("ls-files: malformed record %q", rec)
		}
		fields := bytes.Fields(rec[:tab])
		if len(fields) != 3 {
			return nil, fmt.Errorf("ls-files: malformed record %q", rec)
		}
		mode, err := strconv.ParseUint(string(fields[0]), 8, 32)
		if err != nil {
			return nil, fmt.Errorf("ls-files: bad mode in %q: %w", rec, err)
		}
		oid, err := ParseHash(string(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("ls-files: bad object ID in %q: %w", rec, err)
		}
		// fields[2] is the merge stage; appendEntry keeps the last stage
		// listed for a path, matching how the index parser collapses them.
		entries, err = appendEntry(entries, Entry{
			Mode: cleanupMode(uint32(mode)),
			OID:  oid,
			Path: string(rec[tab+1:]),
		})
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}
