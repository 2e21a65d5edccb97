package pyext

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CasacoreLibrary is the library whose version gates the build.
const CasacoreLibrary = "casa_casa"

// Setup runs the preflight and builds the extensions of one project.
type Setup struct {
	ProjectDir   string // Project root; metadata and sources are relative to it
	PythonExe    string // Interpreter to build for; DefaultPython() if empty
	MetadataFile string // Metadata path; <ProjectDir>/pyext.toml if empty
	ManifestFile string // Optional extension manifest replacing the built-in table

	Config  *BuildConfig
	Factory *BuilderFactory // NewBuilderFactory() if nil
	Loader  VersionLoader   // Version gate loader; dlopen if nil

	prober   *FlagProber
	userArgs []string          // CompileArgs as given, before preflight options
	userEnv  map[string]string // Env as given, before preflight overrides
	captured bool
}

// Plan is the outcome of a successful preflight.
type Plan struct {
	Metadata        *Metadata
	Python          *PythonInfo
	CasacorePath    string
	CasacoreVersion string
	Extensions      []*Extension
	CompileArgs     []string
}

func (s *Setup) config() *BuildConfig {
	if s.Config == nil {
		s.Config = &BuildConfig{StopOnFailure: true}
	}
	if s.Config.ProjectDir == "" {
		s.Config.ProjectDir = s.ProjectDir
	}
	return s.Config
}

func (s *Setup) factory() *BuilderFactory {
	if s.Factory == nil {
		s.Factory = NewBuilderFactory()
	}
	return s.Factory
}

// Preflight runs every check that must pass before compiling: metadata,
// interpreter, casacore library lookup, version gate, extension
// declaration and compiler option selection. It fills in the build
// configuration. Any failure aborts.
func (s *Setup) Preflight(ctx context.Context) (*Plan, error) {
	config := s.config()
	log := config.logger()

	metaPath := s.MetadataFile
	if metaPath == "" {
		metaPath = filepath.Join(s.ProjectDir, DefaultMetadataFile)
	}
	meta, err := LoadMetadata(metaPath)
	if err != nil {
		return nil, err
	}

	python, err := s.python(ctx)
	if err != nil {
		return nil, err
	}

	resolver := NewLibraryResolver(config.LibraryDirs, python.Prefix)
	resolver.Logger = log
	casaPath, err := resolver.Find(CasacoreLibrary)
	if err != nil {
		return nil, fmt.Errorf("could not find lib%s: %w", CasacoreLibrary, err)
	}

	gate := &VersionGate{Minimum: meta.Package.MinCasacoreVersion, Loader: s.Loader, Logger: log}
	casaVersion, err := gate.Check(casaPath)
	if err != nil {
		return nil, err
	}

	exts, err := s.declareExtensions(python)
	if err != nil {
		return nil, err
	}
	ResolveDepends(exts, resolver)
	for _, ext := range exts {
		ext.Depends = append(ext.Depends, s.declarationFiles(metaPath)...)
	}

	if err := s.configureToolchain(ctx, meta, python); err != nil {
		return nil, err
	}

	log.Info("preflight complete",
		zap.String("casacore", casaPath),
		zap.String("casacore_version", casaVersion),
		zap.Int("extensions", len(exts)),
		zap.Strings("compile_args", config.CompileArgs))

	return &Plan{
		Metadata:        meta,
		Python:          python,
		CasacorePath:    casaPath,
		CasacoreVersion: casaVersion,
		Extensions:      exts,
		CompileArgs:     config.CompileArgs,
	}, nil
}

// Run executes the preflight, builds every extension and, with Inplace,
// copies the modules into the project tree.
func (s *Setup) Run(ctx context.Context) ([]*BuildResult, error) {
	plan, err := s.Preflight(ctx)
	if err != nil {
		return nil, err
	}
	config := s.config()
	log := config.logger().With(zap.String("run", uuid.NewString()[:8]))
	started := time.Now()

	results, err := s.factory().BuildParallel(ctx, config, plan.Extensions)
	log.Info("build finished",
		zap.Int("extensions", len(results)),
		zap.Int("rebuilt", countRebuilt(results)),
		zap.Duration("elapsed", time.Since(started)),
		zap.Bool("ok", err == nil))
	if err != nil {
		return results, err
	}

	if config.Inplace {
		installed, err := InstallInplace(config, results)
		if err != nil {
			return results, err
		}
		log.Info("installed extensions in place", zap.Strings("paths", installed))
	}
	return results, nil
}

func countRebuilt(results []*BuildResult) int {
	n := 0
	for _, result := range results {
		if result != nil && result.Success && !result.Skipped {
			n++
		}
	}
	return n
}

// Extensions declares the extension targets without running the version
// gate, for commands that only need the target list.
func (s *Setup) Extensions(ctx context.Context) ([]*Extension, error) {
	python, err := s.python(ctx)
	if err != nil {
		return nil, err
	}
	s.setBuildDirs(python)
	return s.declareExtensions(python)
}

// Clean removes the build artifacts of every declared extension.
func (s *Setup) Clean(ctx context.Context) error {
	exts, err := s.Extensions(ctx)
	if err != nil {
		return err
	}
	config := s.config()
	if config.CompilerType == "" {
		config.CompilerType = CompilerTypeFor(DefaultCompiler(config.Python))
	}
	return s.factory().CleanAll(ctx, config, exts)
}

func (s *Setup) python(ctx context.Context) (*PythonInfo, error) {
	config := s.config()
	if config.Python != nil {
		return config.Python, nil
	}
	python, err := DetectPython(ctx, s.PythonExe)
	if err != nil {
		return nil, err
	}
	config.Python = python
	config.logger().Debug("detected python",
		zap.String("executable", python.Executable),
		zap.Int("major", python.Major),
		zap.Int("minor", python.Minor),
		zap.String("prefix", python.Prefix))
	return python, nil
}

func (s *Setup) declareExtensions(python *PythonInfo) ([]*Extension, error) {
	if s.ManifestFile == "" {
		return CasacoreExtensions(python.Major, python.Pybind11Includes), nil
	}
	manifest, err := LoadManifest(projectPath(s.ProjectDir, s.ManifestFile))
	if err != nil {
		return nil, err
	}
	return manifest.Resolve(python.Major, python.Pybind11Includes), nil
}

func (s *Setup) configureToolchain(ctx context.Context, meta *Metadata, python *PythonInfo) error {
	config := s.config()
	s.setBuildDirs(python)
	if !s.captured {
		s.userArgs = append([]string{}, config.CompileArgs...)
		s.userEnv = config.Env
		s.captured = true
	}

	if config.Compiler == "" {
		config.Compiler = DefaultCompiler(python)
	}
	if config.CompilerType == "" {
		config.CompilerType = CompilerTypeFor(config.Compiler)
	}

	env := CompileEnv(python)
	for key, value := range s.userEnv {
		env[key] = value
	}
	config.Env = env

	// The prober memoizes per flag, so it lives as long as the compiler.
	if s.prober == nil || s.prober.Compiler != config.Compiler {
		s.prober = NewFlagProber(config.Compiler, config.Env)
		s.prober.Logger = config.logger()
	}
	opts, err := CompilerOptions(ctx, config.CompilerType, runtime.GOOS, meta.Package.Version, s.prober)
	if err != nil {
		return err
	}

	// distutils compiles with the interpreter's OPT flags in front.
	var args []string
	if config.CompilerType == CompilerUnix {
		args = strings.Fields(config.Env["OPT"])
	}
	args = append(args, opts...)
	config.CompileArgs = append(args, s.userArgs...)
	return nil
}

// declarationFiles are the files whose change rebuilds every extension:
// the metadata (it carries VERSION_INFO) and the manifest, if any.
func (s *Setup) declarationFiles(metaPath string) []string {
	files := []string{metaPath}
	if s.ManifestFile != "" {
		files = append(files, projectPath(s.ProjectDir, s.ManifestFile))
	}
	return files
}

// setBuildDirs fills in the distutils style build directories,
// build/temp.<os>-<arch>-<major>.<minor> and build/lib.<...>.
func (s *Setup) setBuildDirs(python *PythonInfo) {
	config := s.config()
	tag := fmt.Sprintf("%s-%s-%d.%d", runtime.GOOS, runtime.GOARCH, python.Major, python.Minor)
	if config.BuildTemp == "" {
		config.BuildTemp = filepath.Join(s.ProjectDir, "build", "temp."+tag)
	}
	if config.BuildLib == "" {
		config.BuildLib = filepath.Join(s.ProjectDir, "build", "lib."+tag)
	}
}
