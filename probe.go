package pyext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/magefile/mage/sh"
	"go.uber.org/zap"
)

// ErrUnsupportedCompiler is returned when the compiler supports none of
// the candidate C++ standard flags.
var ErrUnsupportedCompiler = errors.New("unsupported compiler -- at least C++11 support is needed")

// probeProgram is compiled once per probed flag.
const probeProgram = "int main (int argc, char **argv) { return 0; }"

// DefaultStdFlags are the C++ standard flags tried by CppStdFlag, newest first.
var DefaultStdFlags = []string{"-std=c++14", "-std=c++11"}

// shExec runs a command; replaced in tests.
var shExec = sh.Exec

// FlagProber tests whether a compiler accepts a flag by compiling a
// throwaway program. Results are memoized per flag, so probing the same
// flag twice gives the same answer without running the compiler again.
//
// FlagProber is safe for concurrent use.
type FlagProber struct {
	Compiler string
	Env      map[string]string
	TempDir  string // parent of the per-probe directories; os.TempDir() if empty
	Logger   *zap.Logger

	mu    sync.Mutex
	cache map[string]bool
}

// NewFlagProber creates a prober for the given compiler executable.
func NewFlagProber(compiler string, env map[string]string) *FlagProber {
	return &FlagProber{Compiler: compiler, Env: env}
}

// HasFlag reports whether the compiler accepts flag. A compiler that fails
// to start is reported as an error rather than as an unsupported flag.
func (p *FlagProber) HasFlag(ctx context.Context, flag string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ok, cached := p.cache[flag]; cached {
		return ok, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ok, err := p.probe(flag)
	if err != nil {
		return false, err
	}
	if p.cache == nil {
		p.cache = make(map[string]bool)
	}
	p.cache[flag] = ok

	if p.Logger != nil {
		p.Logger.Debug("probed compiler flag",
			zap.String("compiler", p.Compiler),
			zap.String("flag", flag),
			zap.Bool("supported", ok))
	}
	return ok, nil
}

func (p *FlagProber) probe(flag string) (bool, error) {
	dir, err := os.MkdirTemp(p.TempDir, "pyext-probe-")
	if err != nil {
		return false, fmt.Errorf("creating probe directory: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "probe.cpp")
	if err := os.WriteFile(src, []byte(probeProgram), 0o600); err != nil {
		return false, fmt.Errorf("writing probe source: %w", err)
	}

	var out bytes.Buffer
	ran, err := shExec(p.Env, &out, &out, p.Compiler, "-c", src, "-o", filepath.Join(dir, "probe.o"), flag)
	if !ran {
		return false, fmt.Errorf("running compiler %s: %w", p.Compiler, err)
	}
	return err == nil, nil
}

// CppStdFlag returns the newest supported flag from DefaultStdFlags.
func (p *FlagProber) CppStdFlag(ctx context.Context) (string, error) {
	return p.FirstSupported(ctx, DefaultStdFlags)
}

// FirstSupported returns the first flag in candidates the compiler accepts,
// or ErrUnsupportedCompiler when it accepts none.
func (p *FlagProber) FirstSupported(ctx context.Context, candidates []string) (string, error) {
	for _, flag := range candidates {
		ok, err := p.HasFlag(ctx, flag)
		if err != nil {
			return "", err
		}
		if ok {
			return flag, nil
		}
	}
	return "", fmt.Errorf("%w (tried %v)", ErrUnsupportedCompiler, candidates)
}
