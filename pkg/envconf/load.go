// Package envconf loads typed configuration structs from the environment.
//
// Values come from the process environment, optionally seeded from a .env
// file, and are decoded with caarlos0/env (`env` and `envDefault` tags).
// Targets that implement Validator are validated after decoding.
package envconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DotEnvVar names the variable that points at an alternate .env file.
const DotEnvVar = "APP_DOTENV"

var ErrInvalidTarget = errors.New("destination must be a non-nil pointer to a struct")

// Validator is implemented by configs that check their own ranges.
type Validator interface {
	Validate() error
}

// Load fills dst from the environment and validates it.
// Variables already present in the environment win over the .env file.
func Load(dst any) error {
	if dst == nil {
		return ErrInvalidTarget
	}

	err := loadDotEnv()
	if err != nil {
		return err
	}

	err = env.Parse(dst)
	if err != nil {
		if errors.Is(err, env.NotStructPtrError{}) {
			return ErrInvalidTarget
		}

		return fmt.Errorf("parse env: %w", err)
	}

	v, ok := dst.(Validator)
	if !ok {
		return nil
	}

	err = v.Validate()
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	return nil
}

func loadDotEnv() error {
	path := os.Getenv(DotEnvVar)
	explicit := path != ""

	if !explicit {
		path = ".env"
	}

	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	// A missing default .env is normal in containers.
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load %s: %w", path, err)
}
