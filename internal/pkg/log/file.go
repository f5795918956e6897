package log

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

// File is the run log file.
// If the user does not specify a path, a temp file is created.
// A temp file is removed on success and preserved on error,
// so the failure summary can point the operator to the full run log.
type File struct {
	file *os.File
	path string
	temp bool
}

func NewLogFile(path string) (*File, error) {
	f := &File{}
	if len(path) == 0 {
		// Unique suffix if multiple instances start simultaneously
		randomHash := ``
		randomBytes := make([]byte, 6)
		if _, err := rand.Read(randomBytes); err == nil {
			randomHash = fmt.Sprintf(`-%x`, randomBytes)
		}

		f.path = filepath.Join(os.TempDir(), fmt.Sprintf("upctl-%d%s.log", time.Now().Unix(), randomHash))
		f.temp = true
	} else {
		if v, err := filepath.Abs(path); err == nil {
			f.path = v
		} else {
			return nil, err
		}
		f.temp = false
	}

	if file, err := os.OpenFile(f.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600); err == nil {
		f.file = file
		return f, nil
	} else {
		return nil, err
	}
}

func (f *File) File() *os.File {
	return f.file
}

func (f *File) Path() string {
	return f.path
}

func (f *File) IsTemp() bool {
	return f.temp
}

// TearDown closes the log file, a temp file is removed unless an error occurred.
func (f *File) TearDown(errorOccurred bool) {
	if f == nil {
		return
	}

	if err := f.file.Close(); err != nil {
		panic(errors.Errorf(`cannot close log file "%s": %w`, f.path, err))
	}

	if !errorOccurred && f.temp {
		if err := os.Remove(f.path); err != nil {
			panic(errors.Errorf(`cannot remove temp log file "%s": %w`, f.path, err))
		}
	}
}
