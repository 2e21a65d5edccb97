package pyext

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// MSVCBuilder compiles extensions with the Microsoft toolchain (cl.exe
// and link.exe).
type MSVCBuilder struct{}

// Name returns the builder name
func (b *MSVCBuilder) Name() string {
	return "MSVC"
}

// RequiredTools returns the configured compiler and linker, or cl.exe and
// link.exe with their clang counterparts
func (b *MSVCBuilder) RequiredTools(config *BuildConfig) []ToolRequirement {
	return []ToolRequirement{
		toolRequirement(config.Compiler, "MSVC C++ compiler", "cl", "clang-cl"),
		toolRequirement(config.Linker, "MSVC linker", "link", "lld-link"),
	}
}

// CheckTools verifies that the MSVC toolchain is available
func (b *MSVCBuilder) CheckTools(config *BuildConfig) (map[string]string, error) {
	return CheckRequiredTools(b.RequiredTools(config))
}

// CanBuild checks if this builder drives the compiler type
func (b *MSVCBuilder) CanBuild(compilerType string) bool {
	return compilerType == CompilerMSVC
}

// Build compiles every source of the extension and links the module
func (b *MSVCBuilder) Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error) {
	return runCommonBuild(ctx, config, ext, CommonBuildSteps{
		ConfigureFunc: prepareOutputDirs,
		BuildFunc:     b.compileAndLink,
		FindFunc:      findBuiltExtension,
	})
}

// Clean removes object files and the linked module
func (b *MSVCBuilder) Clean(_ context.Context, config *BuildConfig, ext *Extension) error {
	return cleanExtension(config, ext, ".obj")
}

func (b *MSVCBuilder) compileAndLink(ctx context.Context, config *BuildConfig, ext *Extension, result *BuildResult) error {
	compiler := config.Compiler
	if compiler == "" {
		compiler = "cl"
	}

	var objects []string
	for _, src := range ext.Sources {
		obj := ext.ObjectPath(config.BuildTemp, src, ".obj")
		if err := os.MkdirAll(filepath.Dir(obj), 0o755); err != nil {
			return err
		}
		args := []string{"/nologo", "/c", "/MD", "/O2"}
		for _, dir := range includeDirs(config, ext) {
			args = append(args, "/I"+dir)
		}
		args = append(args, "/Tp"+projectPath(config.ProjectDir, src), "/Fo"+obj)
		args = append(args, config.CompileArgs...)
		if err := runTool(ctx, config, "Compile", compiler, args, result); err != nil {
			return err
		}
		objects = append(objects, obj)
	}

	linker := config.Linker
	if linker == "" {
		linker = "link"
	}
	target := ext.OutputPath(config.BuildLib, config.extSuffix())

	args := []string{"/nologo", "/DLL", "/EXPORT:PyInit_" + ext.ShortName()}
	for _, dir := range b.libPaths(config) {
		args = append(args, "/LIBPATH:"+dir)
	}
	args = append(args, objects...)
	for _, lib := range ext.Libraries {
		if !strings.HasSuffix(strings.ToLower(lib), ".lib") {
			lib += ".lib"
		}
		args = append(args, lib)
	}
	args = append(args, "/OUT:"+target)
	args = append(args, config.LinkArgs...)

	return runTool(ctx, config, "Link", linker, args, result)
}

// libPaths adds the interpreter's libs directory, where python3X.lib lives.
func (b *MSVCBuilder) libPaths(config *BuildConfig) []string {
	dirs := append([]string{}, config.LibraryDirs...)
	if config.Python != nil && config.Python.Prefix != "" {
		dirs = append(dirs, filepath.Join(config.Python.Prefix, "libs"))
	}
	return uniqueStrings(dirs)
}
