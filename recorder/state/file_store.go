package state

import (
	"os"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// ErrCorrupt is returned when a state file exists but cannot be decoded.
var ErrCorrupt = errors.New("state file is corrupt")

// FileStore persists one JSON document. Saves replace the file atomically.
type FileStore struct {
	path   string
	dryRun bool
}

func NewFileStore(path string, dryRun bool) *FileStore {
	return &FileStore{path: path, dryRun: dryRun}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load decodes the document into v. It reports found=false, and leaves v untouched, when the file
// does not exist.
func (s *FileStore) Load(v interface{}) (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			glog.Infof("No existing database found at %s", s.path)
			return false, nil
		}
		return false, errors.Wrapf(err, "cannot read %s", s.path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, errors.Wrapf(ErrCorrupt, "%s: %v", s.path, err)
	}
	glog.V(1).Infof("Loaded %s", s.path)
	return true, nil
}

func (s *FileStore) Save(v interface{}) error {
	if s.dryRun {
		glog.Infof("Skipped saving %s due to dry run", s.path)
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot encode state")
	}
	return WriteFileAtomic(s.path, data)
}

// WriteFileAtomic writes data next to path and renames it into place, so readers never see a
// partial file.
func WriteFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", tmpFile)
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return errors.Wrapf(err, "cannot write %s", tmpFile)
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return errors.Wrapf(err, "cannot sync %s", tmpFile)
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return errors.Wrapf(err, "cannot close %s", tmpFile)
	}

	return errors.Wrapf(os.Rename(tmpFile, path), "cannot rename %s", tmpFile)
}
