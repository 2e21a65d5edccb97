//go:build !(darwin || linux || freebsd)

package pyext

import (
	"fmt"
	"runtime"
)

type dlopenLoader struct{}

func (dlopenLoader) LoadVersion(libPath, symbol string) (string, error) {
	return "", fmt.Errorf("loading %s: dynamic loading is not supported on %s", libPath, runtime.GOOS)
}
