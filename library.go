package pyext

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// ErrLibraryNotFound is returned when a native library is in none of the
// searched directories.
var ErrLibraryNotFound = errors.New("library not found")

// multiarchDirs maps GOARCH to the Debian multiarch library directory.
var multiarchDirs = map[string]string{
	"amd64":   "x86_64-linux-gnu",
	"arm64":   "aarch64-linux-gnu",
	"arm":     "arm-linux-gnueabihf",
	"386":     "i386-linux-gnu",
	"ppc64le": "powerpc64le-linux-gnu",
	"s390x":   "s390x-linux-gnu",
}

// ParseLibraryDirs extracts the library directories given on a build
// command line with --library-dirs or -L. Values may hold several
// directories joined by the OS list separator. All other arguments are
// ignored.
func ParseLibraryDirs(args []string) []string {
	var value string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--library-dirs" || arg == "-L":
			if i+1 < len(args) {
				value = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--library-dirs="):
			value = strings.TrimPrefix(arg, "--library-dirs=")
		case strings.HasPrefix(arg, "-L") && len(arg) > 2:
			value = arg[2:]
		}
	}
	if value == "" {
		return nil
	}
	return filepath.SplitList(value)
}

// SearchDirs returns the prioritized directory list used to resolve native
// libraries: the user directories, then <prefix>/lib of the interpreter,
// then the standard system directories.
func SearchDirs(user []string, prefix string) []string {
	dirs := append([]string{}, user...)
	if prefix != "" {
		dirs = append(dirs, filepath.Join(prefix, "lib"))
	}
	dirs = append(dirs, "/usr/local/lib", "/usr/lib")
	if runtime.GOOS == "linux" {
		if arch, ok := multiarchDirs[runtime.GOARCH]; ok {
			dirs = append(dirs, filepath.Join("/usr/lib", arch))
		}
	}
	return uniqueStrings(dirs)
}

// libraryFileNames returns the file names tried for a library short name,
// in preference order.
func libraryFileNames(name, goos string) []string {
	switch goos {
	case "windows":
		return []string{name + ".lib", "lib" + name + ".lib", name + ".dll"}
	case "darwin":
		return []string{"lib" + name + ".dylib", "lib" + name + ".tbd", "lib" + name + ".so", "lib" + name + ".a"}
	default:
		return []string{"lib" + name + ".so", "lib" + name + ".a"}
	}
}

// LibraryResolver finds native libraries by short name ("casa_casa" for
// libcasa_casa.so). The zero value searches nothing; use NewLibraryResolver.
type LibraryResolver struct {
	Dirs   []string
	GOOS   string
	Logger *zap.Logger
}

// NewLibraryResolver creates a resolver over SearchDirs(user, prefix).
func NewLibraryResolver(user []string, prefix string) *LibraryResolver {
	return &LibraryResolver{
		Dirs: SearchDirs(user, prefix),
		GOOS: runtime.GOOS,
	}
}

// Find returns the path of the first matching library file. Directories
// are tried in order and, within a directory, the candidate names in
// preference order.
func (r *LibraryResolver) Find(name string) (string, error) {
	goos := r.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	candidates := libraryFileNames(name, goos)

	for _, dir := range r.Dirs {
		for _, candidate := range candidates {
			path := filepath.Join(dir, candidate)
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			if r.Logger != nil {
				r.Logger.Debug("resolved library", zap.String("name", name), zap.String("path", path))
			}
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: lib%s in %s", ErrLibraryNotFound, name, strings.Join(r.Dirs, ", "))
}

// FindAll resolves every name, returning the paths found (keyed by name)
// and the names that could not be resolved.
func (r *LibraryResolver) FindAll(names []string) (map[string]string, []string) {
	found := make(map[string]string)
	var missing []string
	for _, name := range names {
		path, err := r.Find(name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		found[name] = path
	}
	return found, missing
}
