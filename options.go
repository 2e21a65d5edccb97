package pyext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform constants
const (
	platformWindows = "windows"
	platformDarwin  = "darwin"
)

// Compiler types
const (
	CompilerUnix = "unix"
	CompilerMSVC = "msvc"
)

// strictPrototypes is valid for C only and makes g++ warn on every file.
const strictPrototypes = "-Wstrict-prototypes"

// platformOpts are the per compiler type options applied before the
// version and standard flags.
func platformOpts(compilerType, goos string) []string {
	switch compilerType {
	case CompilerMSVC:
		return []string{"/EHsc"}
	case CompilerUnix:
		if goos == platformDarwin {
			return []string{"-stdlib=libc++", "-mmacosx-version-min=10.7"}
		}
	}
	return nil
}

// flagProber is the part of FlagProber used to select options.
type flagProber interface {
	HasFlag(ctx context.Context, flag string) (bool, error)
	FirstSupported(ctx context.Context, candidates []string) (string, error)
}

// CompilerOptions returns the extra compile arguments for every extension:
//
//	msvc: /EHsc /DVERSION_INFO=\"<version>\"
//	unix: [darwin flags] -DVERSION_INFO="<version>" -std=c++NN [-fvisibility=hidden]
//
// The unix standard flag is the newest of DefaultStdFlags the compiler
// accepts; ErrUnsupportedCompiler is returned if it accepts none.
func CompilerOptions(ctx context.Context, compilerType, goos, version string, prober flagProber) ([]string, error) {
	opts := platformOpts(compilerType, goos)

	switch compilerType {
	case CompilerUnix:
		opts = append(opts, fmt.Sprintf(`-DVERSION_INFO="%s"`, version))
		std, err := prober.FirstSupported(ctx, DefaultStdFlags)
		if err != nil {
			return nil, err
		}
		opts = append(opts, std)
		hidden, err := prober.HasFlag(ctx, "-fvisibility=hidden")
		if err != nil {
			return nil, err
		}
		if hidden {
			opts = append(opts, "-fvisibility=hidden")
		}
	case CompilerMSVC:
		opts = append(opts, fmt.Sprintf(`/DVERSION_INFO=\"%s\"`, version))
	default:
		return nil, fmt.Errorf("unknown compiler type %q", compilerType)
	}

	return opts, nil
}

// StripFlag removes every occurrence of flag from a space separated flag
// string such as the interpreter's OPT.
func StripFlag(flags, flag string) string {
	var kept []string
	for _, f := range strings.Fields(flags) {
		if f != flag {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// CompileEnv returns the environment overrides for compiler processes:
// OPT without the strict-prototypes warning.
func CompileEnv(python *PythonInfo) map[string]string {
	env := make(map[string]string)
	if python != nil {
		env["OPT"] = StripFlag(python.Opt, strictPrototypes)
	}
	return env
}

// DefaultCompiler picks the C++ compiler: CXX from the environment, then
// the interpreter's configured CXX, then the platform default.
func DefaultCompiler(python *PythonInfo) string {
	if cxx := strings.Fields(os.Getenv("CXX")); len(cxx) > 0 {
		return cxx[0]
	}
	if cxx := python.CompilerCommand(); cxx != "" {
		return cxx
	}
	if runtime.GOOS == platformWindows {
		return "cl"
	}
	return "c++"
}

// CompilerTypeFor classifies a compiler executable.
func CompilerTypeFor(compiler string) string {
	base := strings.ToLower(filepath.Base(compiler))
	if MatchesPattern(base, `^(clang-)?cl(\.exe)?$`) {
		return CompilerMSVC
	}
	return CompilerUnix
}
