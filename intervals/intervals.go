// Package intervals loads the genomic interval list that scattering caller
// stages fan work out over. The list is read once and shared read-only
// across every scatter site.
package intervals

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
)

// An Interval is one genomic range from the interval list. Raw keeps the
// colon-delimited form the external tools expect ("1:1000-2000"); Token is
// the filesystem-safe variant used in scattered output names. Values are
// immutable after Load.
type Interval struct {
	Raw   string
	Token string
}

// Token derives the filesystem-safe name for a raw range by substituting
// the first colon. The derivation is deterministic, so every scatter site
// names a given interval identically.
func Token(raw string) string {
	return strings.Replace(raw, ":", "_", 1)
}

// Load reads the interval list at path, one range per line, skipping blank
// lines. Gzipped lists are read transparently. The returned slice is the
// single source every scatter site draws its copies from.
func Load(path string) ([]Interval, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "interval list", path)
	}
	defer in.Close(ctx) // nolint: errcheck
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		defer u.Close() // nolint: errcheck
		r = u
	}
	var ivals []Interval
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		ivals = append(ivals, Interval{Raw: raw, Token: Token(raw)})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "interval list", path)
	}
	if len(ivals) == 0 {
		return nil, errors.E("interval list", path, "is empty")
	}
	return ivals, nil
}
