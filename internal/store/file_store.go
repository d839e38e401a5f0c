// Package store persists workflow artifacts on the local filesystem.
//
// Text artifacts are written as "blog_<YYYYMMDD_HHMMSS>.md" and audio artifacts
// as "audio_<YYYYMMDD_HHMMSS>.<ext>" inside the results directory. These
// timestamped names never overwrite an existing file: when two artifacts land in
// the same second a "_<n>" suffix is appended to the later one.
//
// SaveTextAt and SaveBytes write to a caller-chosen path and replace whatever is
// there. Processing an existing document uses them for "<base>_polished.md" and
// "<base>.<ext>", so reprocessing a file replaces its previous outputs.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Naming and permission constants.
const (
	textPrefix      = "blog_"
	audioPrefix     = "audio_"
	textExtension   = ".md"
	timestampLayout = "20060102_150405"
	dirPermissions  = 0o750
	filePermissions = 0o644
	maxNameAttempts = 1000
)

// Error message and format string constants.
const (
	errFmtPersistence   = "failed to persist %s: %v"
	errFmtNameExhausted = "%w: %s"
)

// Static errors.
var (
	ErrDirEmpty       = errors.New("results directory cannot be empty")
	ErrPathEmpty      = errors.New("artifact path cannot be empty")
	ErrNamesExhausted = errors.New("no free artifact name left for timestamp")
	ErrNoAudioData    = errors.New("audio data cannot be empty")
)

// PersistenceError reports a failed filesystem write.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf(errFmtPersistence, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock replaces the clock used to stamp artifact names.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		s.now = now
	}
}

// FileStore implements core.ResultStore on a directory.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore returns a store rooted at dir. The directory is created lazily on
// the first write.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrDirEmpty
	}

	s := &FileStore{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Dir returns the results directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// SaveText writes "# <title>\n\n<body>" to a new timestamped markdown file and
// returns its path.
func (s *FileStore) SaveText(title, body string) (string, error) {
	mkdirErr := os.MkdirAll(s.dir, dirPermissions)
	if mkdirErr != nil {
		return "", &PersistenceError{Path: s.dir, Err: mkdirErr}
	}

	stamp := s.now().Format(timestampLayout)

	for attempt := range maxNameAttempts {
		path := filepath.Join(s.dir, artifactName(textPrefix, stamp, attempt, textExtension))

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
		if errors.Is(err, os.ErrExist) {
			continue
		}

		if err != nil {
			return "", &PersistenceError{Path: path, Err: err}
		}

		writeErr := writeDocument(file, title, body)
		if writeErr != nil {
			_ = os.Remove(path)

			return "", &PersistenceError{Path: path, Err: writeErr}
		}

		return path, nil
	}

	return "", &PersistenceError{
		Path: s.dir,
		Err:  fmt.Errorf(errFmtNameExhausted, ErrNamesExhausted, stamp),
	}
}

// SaveTextAt writes the document to an explicit path, replacing any previous
// content.
func (s *FileStore) SaveTextAt(path, title, body string) error {
	if path == "" {
		return ErrPathEmpty
	}

	mkdirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if mkdirErr != nil {
		return &PersistenceError{Path: path, Err: mkdirErr}
	}

	writeErr := os.WriteFile(path, []byte(Document(title, body)), filePermissions)
	if writeErr != nil {
		return &PersistenceError{Path: path, Err: writeErr}
	}

	return nil
}

// AudioPath returns an unused timestamped audio path for the given format.
func (s *FileStore) AudioPath(format string) string {
	ext := "." + strings.TrimPrefix(format, ".")
	stamp := s.now().Format(timestampLayout)

	var path string

	for attempt := range maxNameAttempts {
		path = filepath.Join(s.dir, artifactName(audioPrefix, stamp, attempt, ext))

		_, statErr := os.Stat(path)
		if errors.Is(statErr, os.ErrNotExist) {
			return path
		}
	}

	return path
}

// SaveBytes writes data to path, creating parent directories and replacing any
// previous content.
func (s *FileStore) SaveBytes(path string, data []byte) error {
	if path == "" {
		return ErrPathEmpty
	}

	if len(data) == 0 {
		return &PersistenceError{Path: path, Err: ErrNoAudioData}
	}

	mkdirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if mkdirErr != nil {
		return &PersistenceError{Path: path, Err: mkdirErr}
	}

	writeErr := os.WriteFile(path, data, filePermissions)
	if writeErr != nil {
		return &PersistenceError{Path: path, Err: writeErr}
	}

	return nil
}

// Document renders the markdown persisted for a blog post.
func Document(title, body string) string {
	return "# " + title + "\n\n" + body
}

func artifactName(prefix, stamp string, attempt int, ext string) string {
	if attempt == 0 {
		return prefix + stamp + ext
	}

	return fmt.Sprintf("%s%s_%d%s", prefix, stamp, attempt, ext)
}

func writeDocument(file *os.File, title, body string) error {
	_, writeErr := file.WriteString(Document(title, body))
	closeErr := file.Close()

	if writeErr != nil {
		return writeErr
	}

	return closeErr
}
