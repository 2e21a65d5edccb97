//go:build darwin || linux || freebsd

package pyext

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// dlopenLoader loads the library with dlopen and calls the version symbol.
type dlopenLoader struct{}

func (dlopenLoader) LoadVersion(libPath, symbol string) (version string, err error) {
	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", libPath, err)
	}
	defer purego.Dlclose(handle)

	sym, err := purego.Dlsym(handle, symbol)
	if err != nil {
		return "", fmt.Errorf("resolving %s in %s: %w", symbol, libPath, err)
	}

	// RegisterFunc panics on signatures it cannot bind.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("calling %s: %v", symbol, r)
		}
	}()

	var getVersion func() string
	purego.RegisterFunc(&getVersion, sym)
	version = getVersion()
	if version == "" {
		return "", fmt.Errorf("%s returned an empty version", symbol)
	}
	return version, nil
}
