// Package artifact downloads, verifies and detects application artifacts.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"

	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

type storeDeps interface {
	Logger() log.Logger
}

// Store downloads artifacts into a local directory.
type Store struct {
	logger log.Logger
	client *resty.Client
	fs     afero.Fs
	dir    string
}

func NewStore(d storeDeps, client *resty.Client, fs afero.Fs, dir string) *Store {
	return &Store{
		logger: d.Logger().WithComponent("artifact"),
		client: client,
		fs:     fs,
		dir:    dir,
	}
}

// Fetch downloads the artifact and verifies its SHA-256 checksum.
// A checksum mismatch removes the partial file, corrupt artifacts must not
// remain on disk where a later run could pick them up.
func (s *Store) Fetch(ctx context.Context, url, name, checksum string) (string, error) {
	path := filepath.Join(s.dir, name)
	s.logger.Infof(ctx, `downloading "%s"`, url)

	response, err := s.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return "", errors.PrefixErrorf(err, `cannot download "%s"`, url)
	}
	body := response.RawBody()
	defer body.Close()
	if response.StatusCode() != 200 {
		return "", errors.Errorf(`cannot download "%s": unexpected status code %d`, url, response.StatusCode())
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	file, err := s.fs.Create(path)
	if err != nil {
		return "", errors.PrefixErrorf(err, `cannot create "%s"`, path)
	}

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hash), body)
	closeErr := file.Close()
	if err != nil {
		return "", errors.PrefixErrorf(err, `cannot write "%s"`, path)
	}
	if closeErr != nil {
		return "", errors.PrefixErrorf(closeErr, `cannot write "%s"`, path)
	}

	if checksum != "" {
		actual := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(actual, checksum) {
			if err := s.fs.Remove(path); err != nil {
				s.logger.Warnf(ctx, `cannot remove corrupt artifact "%s": %s`, path, err)
			}
			return "", errors.Errorf(`checksum mismatch for "%s": expected %s, got %s`, name, checksum, actual)
		}
	}

	s.logger.Infof(ctx, `downloaded "%s" (%s)`, name, humanize.Bytes(uint64(size)))
	return path, nil
}

// Exists reports whether the artifact is already present in the store.
func (s *Store) Exists(name string) (bool, error) {
	return afero.Exists(s.fs, filepath.Join(s.dir, name))
}

// Path returns the local path of a stored artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// IsDeployed reports whether the named artifact appears in a deployment listing.
// Names are compared without the artifact extension, deployment tools usually
// strip it when registering the application.
func IsDeployed(deployed []string, name string) bool {
	want := stripExtension(name)
	for _, d := range deployed {
		if stripExtension(d) == want {
			return true
		}
	}
	return false
}

func stripExtension(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
