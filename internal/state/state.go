// Package state persists the record of applied migrations: an ordered
// list of keys plus a last-run timestamp, kept in a small YAML file next
// to the migrations themselves so it stays human-diffable.
package state

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DefaultFilename is used when no explicit state file path is configured,
// resolved relative to the migrations folder.
const DefaultFilename = ".stride"

var ErrStateCorrupted = errors.New("state file corrupted")

// ErrStateWrite marks a failed persist after a unit's script already ran.
// Callers must surface it distinctly: the database changed but the
// bookkeeping did not.
var ErrStateWrite = errors.New("could not write state file")

// Record is the durable applied-state: keys in the order they were
// applied. LastRun is informational.
type Record struct {
	LastRun time.Time `yaml:"lastRun"`
	Applied []string  `yaml:"applied"`
}

// Read loads the record at path. A missing file means nothing has been
// applied yet and yields an empty record, not an error.
func Read(path string) (Record, error) {
	var r Record

	b, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return r, errors.Wrapf(err, "could not read state file [%s]", path)
	}

	if err := yaml.Unmarshal(b, &r); err != nil {
		return Record{}, errors.Wrapf(ErrStateCorrupted, "%s: %s", path, err)
	}

	return r, nil
}

// Write persists the record atomically: marshal to a temp file in the
// target directory, then rename over path. A crash mid-write leaves the
// previous valid record intact.
func Write(path string, r Record) error {
	b, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrapf(ErrStateWrite, "%s: %s", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := ioutil.TempFile(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return errors.Wrapf(ErrStateWrite, "%s: %s", path, err)
	}

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(ErrStateWrite, "%s: %s", path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(ErrStateWrite, "%s: %s", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(ErrStateWrite, "%s: %s", path, err)
	}

	return nil
}
