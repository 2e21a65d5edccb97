package pyext

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiler accepts the flags in supported and counts invocations.
type fakeCompiler struct {
	mu        sync.Mutex
	supported map[string]bool
	calls     map[string]int
	missing   bool
}

func (f *fakeCompiler) exec(_ map[string]string, _, _ io.Writer, cmd string, args ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.missing {
		return false, errors.New(`exec: "` + cmd + `": executable file not found in $PATH`)
	}
	flag := args[len(args)-1]
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[flag]++

	if _, err := os.Stat(args[1]); err != nil {
		return true, err
	}
	if f.supported[flag] {
		return true, nil
	}
	return true, errors.New("exit status 1")
}

func withFakeCompiler(t *testing.T, f *fakeCompiler) {
	t.Helper()
	orig := shExec
	shExec = f.exec
	t.Cleanup(func() { shExec = orig })
}

func TestHasFlag(t *testing.T) {
	f := &fakeCompiler{supported: map[string]bool{"-std=c++11": true}}
	withFakeCompiler(t, f)

	p := NewFlagProber("c++", nil)
	p.TempDir = t.TempDir()

	ok, err := p.HasFlag(context.Background(), "-std=c++11")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.HasFlag(context.Background(), "-std=c++14")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(p.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe directories must be removed")
}

func TestHasFlagIdempotent(t *testing.T) {
	f := &fakeCompiler{supported: map[string]bool{"-fvisibility=hidden": true}}
	withFakeCompiler(t, f)

	p := NewFlagProber("c++", nil)
	p.TempDir = t.TempDir()

	for i := 0; i < 3; i++ {
		ok, err := p.HasFlag(context.Background(), "-fvisibility=hidden")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = p.HasFlag(context.Background(), "-bogus")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	assert.Equal(t, 1, f.calls["-fvisibility=hidden"])
	assert.Equal(t, 1, f.calls["-bogus"])
}

func TestHasFlagCompilerMissing(t *testing.T) {
	withFakeCompiler(t, &fakeCompiler{missing: true})

	p := NewFlagProber("no-such-c++", nil)
	p.TempDir = t.TempDir()

	_, err := p.HasFlag(context.Background(), "-std=c++11")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-c++")
}

func TestHasFlagCanceled(t *testing.T) {
	withFakeCompiler(t, &fakeCompiler{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewFlagProber("c++", nil)
	_, err := p.HasFlag(ctx, "-std=c++11")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCppStdFlag(t *testing.T) {
	testCases := []struct {
		name      string
		supported map[string]bool
		expected  string
		wantErr   bool
	}{
		{"prefers c++14", map[string]bool{"-std=c++14": true, "-std=c++11": true}, "-std=c++14", false},
		{"falls back to c++11", map[string]bool{"-std=c++11": true}, "-std=c++11", false},
		{"unsupported", map[string]bool{}, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			withFakeCompiler(t, &fakeCompiler{supported: tc.supported})
			p := NewFlagProber("c++", nil)
			p.TempDir = t.TempDir()

			flag, err := p.CppStdFlag(context.Background())
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedCompiler)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, flag)
		})
	}
}

func TestProbeWritesProgram(t *testing.T) {
	var source string
	orig := shExec
	shExec = func(_ map[string]string, _, _ io.Writer, _ string, args ...string) (bool, error) {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return true, err
		}
		source = string(data)
		assert.Equal(t, "probe.cpp", filepath.Base(args[1]))
		return true, nil
	}
	t.Cleanup(func() { shExec = orig })

	p := NewFlagProber("c++", nil)
	p.TempDir = t.TempDir()
	_, err := p.HasFlag(context.Background(), "-O2")
	require.NoError(t, err)
	assert.Equal(t, probeProgram, source)
}
