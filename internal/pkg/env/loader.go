package env

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

// LoadDotEnv loads envs from ".env" files if they exist. Existing envs take precedence.
func LoadDotEnv(ctx context.Context, logger log.Logger, osEnvs *Map, fs afero.Fs, dir string) *Map {
	envs := osEnvs.Clone()

	for _, file := range Files() {
		path := filepath.Join(dir, file)
		info, err := fs.Stat(path)
		switch {
		case err == nil && info.IsDir():
			continue
		case err != nil && os.IsNotExist(err):
			continue
		case err != nil:
			logger.Warnf(ctx, `cannot check if path "%s" exists: %s`, path, err)
			continue
		}

		fileEnvs, err := LoadEnvFile(fs, path)
		if err != nil {
			logger.Warn(ctx, err.Error())
			continue
		}
		logger.Debugf(ctx, `loaded env file "%s"`, path)

		// Existing keys take precedence.
		envs.Merge(fileEnvs, false)
	}

	return envs
}

func LoadEnvFile(fs afero.Fs, path string) (*Map, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf(`cannot read env file "%s": %w`, path, err)
	}

	envs, err := LoadEnvString(string(content))
	if err != nil {
		return nil, errors.Errorf(`cannot parse env file "%s": %w`, path, err)
	}

	return envs, nil
}

func LoadEnvString(str string) (*Map, error) {
	envsMap, err := godotenv.Unmarshal(str)
	if err != nil {
		return nil, err
	}
	return FromMap(envsMap), nil
}
