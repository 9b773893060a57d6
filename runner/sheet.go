package runner

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ajtock/sarek/manifest"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// A Sheet writes the per-stage sample sheets handed to the next pipeline
// phase: one TSV per patient, one row appended per sample, columns
// patientId, tumor/normal tag, run tag, bamPath, baiPath. Appends to the
// same patient file are serialized; a Sheet is safe for concurrent use.
type Sheet struct {
	dir string

	mu    sync.Mutex
	files map[manifest.PatientID]*os.File
}

// NewSheet returns a Sheet writing under dir, one file per patient.
func NewSheet(dir string) *Sheet {
	return &Sheet{dir: dir, files: map[manifest.PatientID]*os.File{}}
}

// Append writes one sample row to its patient's sheet.
func (s *Sheet) Append(rec manifest.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[rec.Patient]
	if !ok {
		if err := os.MkdirAll(s.dir, 0777); err != nil {
			return errors.E(err, "sample sheet dir", s.dir)
		}
		path := filepath.Join(s.dir, string(rec.Patient)+".tsv")
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return errors.E(err, "sample sheet", path)
		}
		s.files[rec.Patient] = f
	}
	status, err := rec.Sample.Status()
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f)
	w.WriteString(string(rec.Patient))
	w.WriteString(status.String())
	w.WriteString(string(rec.Run))
	w.WriteString(rec.Bam)
	w.WriteString(rec.Bai)
	if err := w.EndLine(); err != nil {
		return errors.E(err, "sample sheet", string(rec.Patient))
	}
	return w.Flush()
}

// Close closes every patient sheet.
func (s *Sheet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.files = map[manifest.PatientID]*os.File{}
	return firstErr
}
