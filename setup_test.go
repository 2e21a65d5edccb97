package pyext

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const quantaManifest = `
extensions:
  - name: casacore.quanta._quanta
    sources: [src/quanta.cc, src/quantity.cc]
    depends: [src/quanta.h]
    libraries: [casa_casa, "{{python_lib}}"]
`

type setupFixture struct {
	setup    *Setup
	loader   *fakeLoader
	compiler *fakeCompiler
	libDir   string
}

func newSetupFixture(t *testing.T, casaVersion string) *setupFixture {
	t.Helper()
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, DefaultMetadataFile), []byte(testMetadata), 0o644))
	touch(t, filepath.Join(project, "src", "quanta.cc"))
	touch(t, filepath.Join(project, "src", "quantity.cc"))
	touch(t, filepath.Join(project, "src", "quanta.h"))

	libDir := t.TempDir()
	touch(t, filepath.Join(libDir, "libcasa_casa.so"))
	touch(t, filepath.Join(libDir, "libcasa_python3.so"))

	compiler := &fakeCompiler{supported: map[string]bool{"-std=c++14": true, "-std=c++11": true, "-fvisibility=hidden": true}}
	withFakeCompiler(t, compiler)

	loader := &fakeLoader{version: casaVersion}
	return &setupFixture{
		setup: &Setup{
			ProjectDir: project,
			Loader:     loader,
			Config: &BuildConfig{
				Compiler:      "c++",
				LibraryDirs:   []string{libDir},
				StopOnFailure: true,
				Logger:        zaptest.NewLogger(t),
				Python: &PythonInfo{
					Major:            3,
					Minor:            11,
					Prefix:           filepath.Join(project, "no-prefix"),
					IncludeDir:       "/opt/py/include/python3.11",
					ExtSuffix:        ".so",
					Opt:              "-O2 -Wstrict-prototypes",
					CCShared:         "-fPIC",
					Pybind11Includes: []string{"/opt/py/include/pybind11"},
				},
			},
		},
		loader:   loader,
		compiler: compiler,
		libDir:   libDir,
	}
}

func TestPreflight(t *testing.T) {
	f := newSetupFixture(t, "3.1.0")

	plan, err := f.setup.Preflight(context.Background())
	require.NoError(t, err)

	casaPath := filepath.Join(f.libDir, "libcasa_casa.so")
	assert.Equal(t, casaPath, plan.CasacorePath)
	assert.Equal(t, casaPath, f.loader.path)
	assert.Equal(t, "3.1.0", plan.CasacoreVersion)
	assert.Equal(t, "python-casacore", plan.Metadata.Package.Name)
	require.Len(t, plan.Extensions, 6)

	quanta := plan.Extensions[4]
	assert.Equal(t, "casacore.quanta._quanta", quanta.Name)
	assert.Contains(t, quanta.Depends, casaPath)
	assert.Contains(t, quanta.Depends, filepath.Join(f.libDir, "libcasa_python3.so"))

	config := f.setup.Config
	assert.Equal(t, CompilerUnix, config.CompilerType)
	assert.Equal(t, "-O2", config.Env["OPT"])
	assert.Equal(t, "-O2", plan.CompileArgs[0])
	assert.Contains(t, plan.CompileArgs, `-DVERSION_INFO="3.0.0"`)
	assert.Contains(t, plan.CompileArgs, "-std=c++14")
	assert.Contains(t, plan.CompileArgs, "-fvisibility=hidden")
	assert.NotContains(t, plan.CompileArgs, "-Wstrict-prototypes")
	if runtime.GOOS == platformDarwin {
		assert.Contains(t, plan.CompileArgs, "-stdlib=libc++")
	}

	assert.Contains(t, config.BuildTemp, filepath.Join(f.setup.ProjectDir, "build", "temp."))
	assert.Contains(t, config.BuildLib, filepath.Join(f.setup.ProjectDir, "build", "lib."))

	again, err := f.setup.Preflight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, plan.CompileArgs, again.CompileArgs, "repeated preflight must not stack options")
}

func TestPreflightLibraryNotFound(t *testing.T) {
	f := newSetupFixture(t, "3.1.0")
	f.setup.Config.LibraryDirs = []string{t.TempDir()}
	f.setup.Config.Python.Prefix = t.TempDir()

	if _, err := NewLibraryResolver(nil, f.setup.Config.Python.Prefix).Find(CasacoreLibrary); err == nil {
		t.Skip("a system casacore is installed")
	}

	_, err := f.setup.Preflight(context.Background())
	require.ErrorIs(t, err, ErrLibraryNotFound)
	assert.Contains(t, err.Error(), "could not find libcasa_casa")
	assert.Empty(t, f.compiler.calls, "compiler must not be probed")
}

func TestPreflightVersionTooOld(t *testing.T) {
	f := newSetupFixture(t, "2.2.0")

	_, err := f.setup.Preflight(context.Background())
	require.ErrorIs(t, err, ErrVersionTooOld)
	assert.Contains(t, err.Error(), "found 2.2.0")
	assert.Empty(t, f.compiler.calls, "compiler must not be probed")
}

func TestPreflightUnsupportedCompiler(t *testing.T) {
	f := newSetupFixture(t, "3.1.0")
	f.compiler.supported = map[string]bool{}

	_, err := f.setup.Preflight(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedCompiler)
}

func TestPreflightMissingMetadata(t *testing.T) {
	f := newSetupFixture(t, "3.1.0")
	f.setup.MetadataFile = filepath.Join(t.TempDir(), "missing.toml")

	_, err := f.setup.Preflight(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.loader.path, "version gate must not run")
}

func TestSetupRunInplace(t *testing.T) {
	withHelperCommand(t, "tool")
	f := newSetupFixture(t, "3.1.0")
	require.NoError(t, os.WriteFile(filepath.Join(f.setup.ProjectDir, "extensions.yaml"), []byte(quantaManifest), 0o644))
	f.setup.ManifestFile = "extensions.yaml"
	f.setup.Config.Inplace = true

	results, err := f.setup.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	assert.FileExists(t, filepath.Join(f.setup.Config.BuildLib, "casacore", "quanta", "_quanta.so"))
	assert.FileExists(t, filepath.Join(f.setup.ProjectDir, "casacore", "quanta", "_quanta.so"))

	results, err = f.setup.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, results[0].Skipped)
}

func TestSetupRunBuildFailure(t *testing.T) {
	withHelperCommand(t, "fail")
	f := newSetupFixture(t, "3.1.0")

	results, err := f.setup.Run(context.Background())
	require.Error(t, err)
	require.Len(t, results, 1, "stop on failure builds only the first extension")
	assert.False(t, results[0].Success)
	assert.Contains(t, err.Error(), "Compile build failed")
}

func TestSetupClean(t *testing.T) {
	withHelperCommand(t, "tool")
	f := newSetupFixture(t, "3.1.0")
	require.NoError(t, os.WriteFile(filepath.Join(f.setup.ProjectDir, "extensions.yaml"), []byte(quantaManifest), 0o644))
	f.setup.ManifestFile = "extensions.yaml"

	_, err := f.setup.Run(context.Background())
	require.NoError(t, err)
	target := filepath.Join(f.setup.Config.BuildLib, "casacore", "quanta", "_quanta.so")
	require.FileExists(t, target)

	require.NoError(t, f.setup.Clean(context.Background()))
	assert.NoFileExists(t, target)
}

func TestSetupRunPicksUpVersionChange(t *testing.T) {
	withHelperCommand(t, "tool")
	f := newSetupFixture(t, "3.1.0")
	require.NoError(t, os.WriteFile(filepath.Join(f.setup.ProjectDir, "extensions.yaml"), []byte(quantaManifest), 0o644))
	f.setup.ManifestFile = "extensions.yaml"
	f.setup.Config.CompileArgs = []string{"-DEXTRA"}

	_, err := f.setup.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, f.setup.Config.CompileArgs, `-DVERSION_INFO="3.0.0"`)

	metaPath := filepath.Join(f.setup.ProjectDir, DefaultMetadataFile)
	bumped := strings.Replace(testMetadata, `version = "3.0.0"`, `version = "3.1.0"`, 1)
	require.NoError(t, os.WriteFile(metaPath, []byte(bumped), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(metaPath, future, future))

	results, err := f.setup.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Skipped, "metadata change must rebuild")

	args := f.setup.Config.CompileArgs
	assert.Contains(t, args, `-DVERSION_INFO="3.1.0"`)
	assert.NotContains(t, args, `-DVERSION_INFO="3.0.0"`)
	assert.Equal(t, "-DEXTRA", args[len(args)-1])
	assert.Equal(t, 1, countOf(args, "-DEXTRA"), "user arguments must not stack")
	assert.Equal(t, 1, countOf(args, "-std=c++14"))
	assert.Equal(t, 1, f.compiler.calls["-std=c++14"], "flag results are reused across runs")
}

func countOf(values []string, want string) int {
	n := 0
	for _, v := range values {
		if v == want {
			n++
		}
	}
	return n
}
