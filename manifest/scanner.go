package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
)

// ErrFieldCount is returned when a manifest line has the wrong number of
// fields for the selected mode.
var ErrFieldCount = errors.New("wrong manifest field count")

const (
	fastqFields = 6
	bamFields   = 5
)

// Scanner reads manifest lines one record at a time. The Scan method parses
// the next line, returning a boolean indicating whether the parse succeeded.
// Once Scan returns false it never returns true again; check Err to
// distinguish end of input from a malformed line. Scanners are not
// threadsafe.
//
// Scanner only parses. It does not touch the filesystem; Load layers the
// file-existence checks on top.
type Scanner struct {
	b    *bufio.Scanner
	mode Mode
	line int
	err  error
}

// NewScanner constructs a Scanner reading manifest text from r in the given
// mode.
func NewScanner(r io.Reader, mode Mode) *Scanner {
	return &Scanner{b: bufio.NewScanner(r), mode: mode}
}

// Scan parses the next manifest line into rec. Blank lines are skipped.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil {
		return false
	}
	var fields []string
	for {
		if !s.b.Scan() {
			s.err = s.b.Err()
			return false
		}
		s.line++
		fields = strings.Fields(s.b.Text())
		if len(fields) > 0 {
			break
		}
	}
	want := fastqFields
	if s.mode == Bam {
		want = bamFields
	}
	if len(fields) != want {
		s.err = fmt.Errorf("line %d: %w: got %d fields, %s mode needs %d",
			s.line, ErrFieldCount, len(fields), s.mode, want)
		return false
	}
	sample, err := MakeSampleID(fields[2], fields[1])
	if err != nil {
		s.err = fmt.Errorf("line %d: %v", s.line, err)
		return false
	}
	*rec = Record{Patient: PatientID(fields[0]), Sample: sample}
	if s.mode == Fastq {
		rec.Run = RunID(fields[3])
		rec.Fastq1, rec.Fastq2 = fields[4], fields[5]
	} else {
		rec.Bam, rec.Bai = fields[3], fields[4]
	}
	return true
}

// Err returns the first error encountered by the Scanner, or nil if input
// ended cleanly.
func (s *Scanner) Err() error {
	return s.err
}

// Load reads the whole manifest at path, verifying that every referenced
// file exists. In bam mode each BAM additionally has its header opened as a
// sanity check. The first malformed line or missing file fails the load,
// naming the offender.
func Load(path string, mode Mode) ([]Record, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, gerrors.E(err, "manifest", path)
	}
	defer in.Close(ctx) // nolint: errcheck
	var recs []Record
	scanner := NewScanner(in.Reader(ctx), mode)
	var rec Record
	for scanner.Scan(&rec) {
		for _, p := range rec.Files() {
			if _, err := file.Stat(ctx, p); err != nil {
				return nil, gerrors.E(err, "manifest", path, "sample", string(rec.Sample), "missing file", p)
			}
		}
		if rec.Bam != "" {
			if err := checkBamHeader(rec.Bam); err != nil {
				return nil, gerrors.E(err, "manifest", path, "unreadable BAM", rec.Bam)
			}
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, gerrors.E(err, "manifest", path)
	}
	return recs, nil
}

// checkBamHeader opens the BAM and parses its header, catching truncated or
// mislabeled files before any stage is scheduled.
func checkBamHeader(path string) error {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer in.Close(ctx) // nolint: errcheck
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return err
	}
	if r.Header() == nil {
		return errors.New("nil BAM header")
	}
	return r.Close()
}
