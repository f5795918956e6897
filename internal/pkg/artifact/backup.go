package artifact

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.nhat.io/aferocopy/v2"

	"github.com/stackops/upctl/internal/pkg/encoding/json"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

const manifestFile = "manifest.json"

// Manifest describes a completed configuration snapshot.
// Its presence is the proof that a rollback has something to restore.
type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	Sources   []string  `json:"sources"`
}

type backupDeps interface {
	Clock() clockwork.Clock
	Logger() log.Logger
}

// Backup snapshots configuration directories before destructive steps
// and restores them on explicit rollback.
type Backup struct {
	clock  clockwork.Clock
	logger log.Logger
	fs     afero.Fs
	dir    string
}

func NewBackup(d backupDeps, fs afero.Fs, dir string) *Backup {
	return &Backup{
		clock:  d.Clock(),
		logger: d.Logger().WithComponent("backup"),
		fs:     fs,
		dir:    dir,
	}
}

// Snapshot copies the source directories into the backup directory and
// writes the manifest last, a manifest never refers to a partial snapshot.
func (b *Backup) Snapshot(ctx context.Context, sources ...string) (Manifest, error) {
	if len(sources) == 0 {
		return Manifest{}, errors.New("nothing to snapshot")
	}
	if err := b.fs.MkdirAll(b.dir, 0o755); err != nil {
		return Manifest{}, err
	}

	for _, source := range sources {
		target := filepath.Join(b.dir, filepath.Base(source))
		b.logger.Infof(ctx, `snapshotting "%s"`, source)
		if err := b.copy(source, target); err != nil {
			return Manifest{}, errors.PrefixErrorf(err, `cannot snapshot "%s"`, source)
		}
	}

	m := Manifest{CreatedAt: b.clock.Now().UTC(), Sources: sources}
	data, err := json.Encode(m, true)
	if err != nil {
		return Manifest{}, err
	}
	if err := afero.WriteFile(b.fs, filepath.Join(b.dir, manifestFile), data, 0o600); err != nil {
		return Manifest{}, errors.PrefixError(err, "cannot write snapshot manifest")
	}
	return m, nil
}

// Manifest loads the snapshot manifest, ErrNoSnapshot if none exists.
func (b *Backup) Manifest() (Manifest, error) {
	path := filepath.Join(b.dir, manifestFile)
	if exists, err := afero.Exists(b.fs, path); err != nil {
		return Manifest{}, err
	} else if !exists {
		return Manifest{}, ErrNoSnapshot
	}
	content, err := afero.ReadFile(b.fs, path)
	if err != nil {
		return Manifest{}, errors.PrefixError(err, "cannot read snapshot manifest")
	}
	m := Manifest{}
	if err := json.Decode(content, &m); err != nil {
		return Manifest{}, errors.PrefixError(err, "cannot parse snapshot manifest")
	}
	return m, nil
}

// ErrNoSnapshot is returned when a restore is requested without a prior snapshot.
var ErrNoSnapshot = errors.New("no snapshot found")

// Restore copies the snapshot back over the original directories.
// It refuses to fabricate a partial restore: without a manifest it fails immediately.
func (b *Backup) Restore(ctx context.Context) (Manifest, error) {
	m, err := b.Manifest()
	if err != nil {
		return Manifest{}, err
	}
	for _, source := range m.Sources {
		stored := filepath.Join(b.dir, filepath.Base(source))
		b.logger.Infof(ctx, `restoring "%s"`, source)
		if err := b.copy(stored, source); err != nil {
			return Manifest{}, errors.PrefixErrorf(err, `cannot restore "%s"`, source)
		}
	}
	return m, nil
}

func (b *Backup) copy(src, dst string) error {
	return aferocopy.Copy(src, dst, aferocopy.Options{
		SrcFs:  b.fs,
		DestFs: b.fs,
		OnDirExists: func(srcFs afero.Fs, src string, destFs afero.Fs, dest string) aferocopy.DirExistsAction {
			return aferocopy.Replace
		},
	})
}
