package pyext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// UnixBuilder compiles extensions with gcc, clang or any compiler that
// accepts the usual -c/-o/-I/-L/-l flags.
type UnixBuilder struct{}

// Name returns the builder name
func (b *UnixBuilder) Name() string {
	return "Unix"
}

// RequiredTools returns the compiler a build would run (config.Compiler,
// then CXX or the interpreter's compiler) and a separately configured linker
func (b *UnixBuilder) RequiredTools(config *BuildConfig) []ToolRequirement {
	compiler := config.Compiler
	if compiler == "" {
		compiler = DefaultCompiler(config.Python)
	}
	req := ToolRequirement{Name: compiler, Purpose: "C++ compiler"}
	if compiler == "c++" {
		req.Alternatives = []string{"g++", "clang++"}
	}

	tools := []ToolRequirement{req}
	if config.Linker != "" && config.Linker != compiler {
		tools = append(tools, ToolRequirement{Name: config.Linker, Purpose: "linker"})
	}
	return tools
}

// CheckTools verifies that the compiler and linker are available
func (b *UnixBuilder) CheckTools(config *BuildConfig) (map[string]string, error) {
	return CheckRequiredTools(b.RequiredTools(config))
}

// CanBuild checks if this builder drives the compiler type
func (b *UnixBuilder) CanBuild(compilerType string) bool {
	return compilerType == CompilerUnix
}

// Build compiles every source of the extension and links the module
func (b *UnixBuilder) Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error) {
	return runCommonBuild(ctx, config, ext, CommonBuildSteps{
		ConfigureFunc: prepareOutputDirs,
		BuildFunc:     b.compileAndLink,
		FindFunc:      findBuiltExtension,
	})
}

// Clean removes object files and the linked module
func (b *UnixBuilder) Clean(_ context.Context, config *BuildConfig, ext *Extension) error {
	return cleanExtension(config, ext, ".o")
}

func (b *UnixBuilder) compileAndLink(ctx context.Context, config *BuildConfig, ext *Extension, result *BuildResult) error {
	compiler := config.Compiler
	if compiler == "" {
		compiler = DefaultCompiler(config.Python)
	}

	var objects []string
	for _, src := range ext.Sources {
		obj := ext.ObjectPath(config.BuildTemp, src, ".o")
		if err := os.MkdirAll(filepath.Dir(obj), 0o755); err != nil {
			return err
		}
		args := b.compileArgs(config, ext, projectPath(config.ProjectDir, src), obj)
		if err := runTool(ctx, config, "Compile", compiler, args, result); err != nil {
			return err
		}
		objects = append(objects, obj)
	}

	linker := config.Linker
	if linker == "" {
		linker = compiler
	}
	target := ext.OutputPath(config.BuildLib, config.extSuffix())
	return runTool(ctx, config, "Link", linker, b.linkArgs(config, ext, objects, target), result)
}

func (b *UnixBuilder) compileArgs(config *BuildConfig, ext *Extension, src, obj string) []string {
	var args []string
	if config.Python != nil {
		args = append(args, strings.Fields(config.Python.CCShared)...)
	}
	if len(args) == 0 {
		args = append(args, "-fPIC")
	}
	for _, dir := range includeDirs(config, ext) {
		args = append(args, "-I"+dir)
	}
	args = append(args, "-c", src, "-o", obj)
	return append(args, config.CompileArgs...)
}

func (b *UnixBuilder) linkArgs(config *BuildConfig, ext *Extension, objects []string, target string) []string {
	args := sharedLinkFlags(config.Python, runtime.GOOS)
	args = append(args, objects...)
	for _, dir := range linkDirs(config) {
		args = append(args, "-L"+dir)
	}
	for _, lib := range ext.Libraries {
		args = append(args, "-l"+lib)
	}
	args = append(args, "-o", target)
	return append(args, config.LinkArgs...)
}

// sharedLinkFlags returns the flags of the interpreter's LDSHARED without
// its program, falling back to the platform's shared object flags.
func sharedLinkFlags(python *PythonInfo, goos string) []string {
	if python != nil {
		if fields := strings.Fields(python.LDShared); len(fields) > 1 {
			return append([]string{}, fields[1:]...)
		}
	}
	if goos == platformDarwin {
		return []string{"-bundle", "-undefined", "dynamic_lookup"}
	}
	return []string{"-shared"}
}

// includeDirs returns the extension's include directories followed by the
// interpreter headers.
func includeDirs(config *BuildConfig, ext *Extension) []string {
	dirs := append([]string{}, ext.IncludeDirs...)
	if config.Python != nil && config.Python.IncludeDir != "" {
		dirs = append(dirs, config.Python.IncludeDir)
	}
	return uniqueStrings(dirs)
}

// linkDirs returns the user library directories followed by the
// interpreter's lib directory.
func linkDirs(config *BuildConfig) []string {
	dirs := append([]string{}, config.LibraryDirs...)
	if config.Python != nil && config.Python.Prefix != "" {
		dirs = append(dirs, filepath.Join(config.Python.Prefix, "lib"))
	}
	return uniqueStrings(dirs)
}

// prepareOutputDirs creates the temp and module output directories.
func prepareOutputDirs(_ context.Context, config *BuildConfig, ext *Extension, result *BuildResult) error {
	if config.BuildTemp == "" || config.BuildLib == "" {
		return fmt.Errorf("build directories not configured for %s", ext.Name)
	}
	target := ext.OutputPath(config.BuildLib, config.extSuffix())
	for _, dir := range []string{config.BuildTemp, filepath.Dir(target)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if config.Verbose {
		result.Output = append(result.Output, fmt.Sprintf("Building %s -> %s", ext.Name, target))
	}
	return nil
}

// findBuiltExtension returns the linked module of ext.
func findBuiltExtension(config *BuildConfig, ext *Extension) ([]string, error) {
	target := ext.OutputPath(config.BuildLib, config.extSuffix())
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("extension %s not produced: %w", ext.Name, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("extension %s: %s is not a regular file", ext.Name, target)
	}
	return []string{target}, nil
}

// cleanExtension removes the object files and module of ext.
func cleanExtension(config *BuildConfig, ext *Extension, objExt string) error {
	paths := []string{ext.OutputPath(config.BuildLib, config.extSuffix())}
	for _, src := range ext.Sources {
		paths = append(paths, ext.ObjectPath(config.BuildTemp, src, objExt))
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// runTool runs one compiler or linker invocation and records its output.
func runTool(ctx context.Context, config *BuildConfig, step, program string, args []string, result *BuildResult) error {
	cmd := execCommandContext(ctx, program, args...)
	cmd.Dir = config.ProjectDir
	cmd.Env = buildEnv(cmd.Env, config.Env)

	if config.Verbose {
		result.Output = append(result.Output, fmt.Sprintf("Running: %s %s", program, strings.Join(args, " ")))
	}
	config.logger().Debug("running build tool",
		zap.String("step", step),
		zap.String("program", program),
		zap.Strings("args", args))

	output, err := cmd.CombinedOutput()
	result.Output = append(result.Output, splitLines(output)...)

	if err != nil {
		return BuildError(step, result.Output, err)
	}
	return nil
}
