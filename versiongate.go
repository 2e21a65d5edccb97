package pyext

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Version gate errors.
var (
	// ErrIncompatibleLibrary is returned when the library cannot be loaded
	// or has no usable version entry point. getVersion was fixed in
	// casacore 2.3.0, so such a library is treated as older than that.
	ErrIncompatibleLibrary = errors.New("casacore version is older than 2.3.0 and incompatible with this version of python-casacore")

	// ErrVersionTooOld is returned when the reported version is below the
	// required minimum.
	ErrVersionTooOld = errors.New("casacore version is too old")
)

// VersionSymbol is the entry point queried for the library version.
const VersionSymbol = "getVersion"

// VersionLoader loads a shared library and calls its version entry point,
// which returns a NUL-terminated string.
type VersionLoader interface {
	LoadVersion(libPath, symbol string) (string, error)
}

// VersionGate aborts a build when the native library is older than Minimum.
type VersionGate struct {
	Minimum string
	Loader  VersionLoader // nil uses the platform dlopen loader
	Logger  *zap.Logger
}

// Check loads libPath, queries its version and compares it with Minimum.
// It returns the reported version on success. A version equal to Minimum
// passes.
func (g *VersionGate) Check(libPath string) (string, error) {
	loader := g.Loader
	if loader == nil {
		loader = dlopenLoader{}
	}

	version, err := loader.LoadVersion(libPath, VersionSymbol)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIncompatibleLibrary, err)
	}

	if err := g.Compare(version); err != nil {
		return version, err
	}

	if g.Logger != nil {
		g.Logger.Info("casacore version accepted",
			zap.String("library", libPath),
			zap.String("version", version),
			zap.String("minimum", g.Minimum))
	}
	return version, nil
}

// Compare checks a reported version string against Minimum.
func (g *VersionGate) Compare(version string) error {
	if CompareVersions(version, g.Minimum) < 0 {
		return fmt.Errorf("%w: found %s, minimum is %s", ErrVersionTooOld, version, g.Minimum)
	}
	return nil
}
