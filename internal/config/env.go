package config

import (
	"io/fs"

	"github.com/cockroachdb/errors"
	"github.com/klemjul/promptforge/internal/errs"
	"github.com/subosito/gotenv"
)

// LoadEnvFile exports the variables of a dotenv file. Variables already set
// in the environment are kept and a missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errs.Configuration(errors.Wrapf(err, "failed to load env file %s", path))
	}
	return nil
}
