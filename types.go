package pyext

import (
	"context"

	"go.uber.org/zap"
)

// BuildResult contains the output and status of a build operation.
//
// After a build completes, this structure provides:
//   - Success status indicating if the build completed without errors
//   - Output lines captured from the compiler and linker
//   - Extensions list of compiled extension files
//   - Skipped when the target was already up to date
type BuildResult struct {
	Name       string   // Dotted module name of the extension
	Success    bool     // True if build completed successfully
	Skipped    bool     // True if the target was up to date and not rebuilt
	Output     []string // Lines of output from the build process
	Extensions []string // Paths to built extension files
	Error      error    // Error if build failed, nil otherwise
}

// BuildConfig contains configuration for the build process.
//
// Source paths:
//   - ProjectDir: Root of the wrapper project (contains src/ and casacore/)
//   - BuildTemp: Directory for object files
//   - BuildLib: Directory receiving the linked extension modules
//
// Toolchain:
//   - Compiler: C++ compiler executable (CXX)
//   - CompilerType: "unix" or "msvc"
//   - CompileArgs: Extra compile arguments, filled in by the preflight
//   - Env: Environment variables set during compilation
//
// Native libraries:
//   - LibraryDirs: User supplied library directories (--library-dirs / -L)
//
// Build behavior:
//   - Force: Rebuild targets even if they are up to date
//   - Inplace: Copy built modules next to the package sources
//   - Parallel: Number of extensions built concurrently (0 = sequential)
//   - StopOnFailure: Stop after the first failed extension
type BuildConfig struct {
	// Source paths
	ProjectDir string // Root directory of the wrapper project
	BuildTemp  string // Directory for intermediate object files
	BuildLib   string // Destination for linked extension modules

	// Toolchain
	Compiler     string            // C++ compiler (defaults to CXX or c++)
	Linker       string            // Shared object linker (defaults to Compiler)
	CompilerType string            // "unix" or "msvc"
	CompileArgs  []string          // Extra compile arguments
	LinkArgs     []string          // Extra link arguments
	Env          map[string]string // Environment variables for build

	// Native libraries
	LibraryDirs []string // User supplied library search directories

	// Python configuration
	Python *PythonInfo // Detected interpreter, nil until probed

	// Build options
	Verbose  bool // Enable verbose output
	Force    bool // Rebuild even if targets are up to date
	Inplace  bool // Install built modules into the project tree
	Parallel int  // Number of concurrent extension builds

	// Failure handling
	StopOnFailure bool // Stop after the first failed extension build

	// Logger receives structured build events; nil disables logging.
	Logger *zap.Logger
}

func (c *BuildConfig) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *BuildConfig) extSuffix() string {
	if c.Python != nil && c.Python.ExtSuffix != "" {
		return c.Python.ExtSuffix
	}
	return defaultExtSuffix()
}

// CommonBuildSteps defines the 3-step build pattern shared by the builders.
//
//  1. Configure: compute compile and link arguments for the extension
//  2. Build: compile every source and link the shared object
//  3. Find: locate the linked extension module
type CommonBuildSteps struct {
	// ConfigureFunc prepares the build (output directories, arguments)
	ConfigureFunc func(ctx context.Context, config *BuildConfig, ext *Extension, result *BuildResult) error

	// BuildFunc compiles and links the extension
	BuildFunc func(ctx context.Context, config *BuildConfig, ext *Extension, result *BuildResult) error

	// FindFunc locates the compiled extension files after build completes
	FindFunc func(config *BuildConfig, ext *Extension) ([]string, error)
}
