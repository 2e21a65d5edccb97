package pyext

import "context"

// Builder defines the interface that all extension builders must implement.
//
// Each builder drives one compiler family (gcc/clang, MSVC) and must
// implement these four methods to integrate with the BuilderFactory.
//
// # Builder Lifecycle
//
//  1. CanBuild() - Factory calls this to find the builder for a compiler type
//  2. Build() - Factory calls this to compile one extension
//  3. Clean() - Optional cleanup of build artifacts
//
// # Thread Safety
//
// Builder implementations should be stateless and thread-safe.
// The same builder instance may be used to build multiple extensions concurrently.
type Builder interface {
	// Name returns the human-readable name of this builder.
	//
	// This name is used in error messages and logs.
	// Examples: "Unix", "MSVC"
	Name() string

	// CanBuild reports whether this builder drives the given compiler type
	// ("unix", "msvc").
	CanBuild(compilerType string) bool

	// Build compiles the extension and returns the result.
	//
	// This method should:
	//  1. Prepare output directories and arguments
	//  2. Compile each source and link the module
	//  3. Locate the compiled extension file
	//
	// Returns:
	//   - BuildResult with Success=true and Extensions list on success
	//   - BuildResult with Success=false and Error on failure
	Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error)

	// Clean removes object files and the linked module of ext.
	//
	// Returns nil if there is nothing to clean.
	Clean(ctx context.Context, config *BuildConfig, ext *Extension) error
}
