package pyext

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// DefaultMetadataFile is the package metadata file name in the project root.
const DefaultMetadataFile = "pyext.toml"

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Metadata holds the package declaration the build reads its versions from.
type Metadata struct {
	Package PackageMetadata `toml:"package" validate:"required"`
}

// PackageMetadata is the [package] table of the metadata file.
type PackageMetadata struct {
	Name               string `toml:"name" validate:"required"`
	Version            string `toml:"version" validate:"required"`
	MinCasacoreVersion string `toml:"min_casacore_version" validate:"required"`
	Description        string `toml:"description"`
	License            string `toml:"license"`
}

// LoadMetadata reads and validates a TOML metadata file.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	return ParseMetadata(data)
}

// ParseMetadata decodes and validates TOML metadata.
func ParseMetadata(data []byte) (*Metadata, error) {
	meta := &Metadata{}
	if err := toml.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	if err := structValidator().Struct(meta); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return meta, nil
}
