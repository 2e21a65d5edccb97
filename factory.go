package pyext

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoBuilder is returned when no registered builder handles a compiler type.
var ErrNoBuilder = errors.New("no builder found")

// BuilderFactory manages the registration and selection of extension builders.
//
// # Usage
//
// Create a factory with all standard builders:
//
//	factory := pyext.NewBuilderFactory()
//
// Or create an empty factory and register custom builders:
//
//	factory := &pyext.BuilderFactory{}
//	factory.Register(&MyCustomBuilder{})
//
// Then use it to build extensions:
//
//	results, err := factory.BuildAllExtensions(ctx, config, extensions)
//
// # Thread Safety
//
// BuilderFactory is NOT thread-safe for registration.
// Register all builders before concurrent use.
type BuilderFactory struct {
	builders []Builder
}

// NewBuilderFactory creates a factory with the standard builders registered:
//  1. UnixBuilder - gcc, clang, c++
//  2. MSVCBuilder - cl.exe
func NewBuilderFactory() *BuilderFactory {
	factory := &BuilderFactory{}

	factory.Register(&UnixBuilder{})
	factory.Register(&MSVCBuilder{})

	return factory
}

// Register adds a new builder to the factory.
//
// Builders are checked in the order they are registered.
func (f *BuilderFactory) Register(builder Builder) {
	f.builders = append(f.builders, builder)
}

// BuilderFor returns the first registered builder for the compiler type.
func (f *BuilderFactory) BuilderFor(compilerType string) (Builder, error) {
	for _, builder := range f.builders {
		if builder.CanBuild(compilerType) {
			return builder, nil
		}
	}

	return nil, fmt.Errorf("%w for compiler type: %s", ErrNoBuilder, compilerType)
}

// ListBuilders returns a copy of all registered builders.
func (f *BuilderFactory) ListBuilders() []Builder {
	return append([]Builder{}, f.builders...)
}

// BuildAllExtensions builds all extensions in sequence.
//
// This method processes each extension in order:
//  1. Check for context cancellation
//  2. Find the builder for config.CompilerType
//  3. Build the extension
//  4. Collect the result
//  5. Stop on first failure if config.StopOnFailure is true
//
// Returns one BuildResult per extension processed and the first error
// encountered. Even if an error is returned, the results slice holds the
// partial results.
func (f *BuilderFactory) BuildAllExtensions(ctx context.Context, config *BuildConfig, extensions []*Extension) ([]*BuildResult, error) {
	if len(extensions) == 0 {
		return nil, nil
	}

	var results []*BuildResult
	var firstError error

	for _, ext := range extensions {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if firstError == nil {
				firstError = ctxErr
			}
			results = append(results, &BuildResult{
				Name:    ext.Name,
				Success: false,
				Error:   ctxErr,
			})
			break
		}

		result, err := f.buildOne(ctx, config, ext)
		if err != nil && firstError == nil {
			firstError = err
		}

		results = append(results, result)

		if !result.Success && config.StopOnFailure {
			break
		}
	}

	return results, firstError
}

// BuildParallel builds the extensions concurrently, at most
// config.Parallel at a time. Results are returned in extension order.
// With StopOnFailure the first failure cancels the builds still running;
// canceled extensions report the context error and the failure that
// stopped the build is returned. Otherwise the first error in extension
// order is returned.
func (f *BuilderFactory) BuildParallel(ctx context.Context, config *BuildConfig, extensions []*Extension) ([]*BuildResult, error) {
	if config.Parallel <= 1 {
		return f.BuildAllExtensions(ctx, config, extensions)
	}

	results := make([]*BuildResult, len(extensions))
	errs := make([]error, len(extensions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Parallel)

	for i, ext := range extensions {
		g.Go(func() error {
			buildCtx := ctx
			if config.StopOnFailure {
				buildCtx = gctx
			}
			if err := buildCtx.Err(); err != nil {
				results[i] = &BuildResult{Name: ext.Name, Error: err}
				errs[i] = err
				return err
			}
			results[i], errs[i] = f.buildOne(buildCtx, config, ext)
			if config.StopOnFailure {
				return errs[i]
			}
			return nil
		})
	}
	// With StopOnFailure the group error is the failure that canceled the
	// others, not one of the resulting context errors.
	if err := g.Wait(); err != nil {
		return results, err
	}
	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (f *BuilderFactory) buildOne(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error) {
	builder, err := f.BuilderFor(config.CompilerType)
	if err != nil {
		return &BuildResult{Name: ext.Name, Success: false, Error: err}, err
	}

	result, err := builder.Build(ctx, config, ext)
	if result == nil {
		result = &BuildResult{Name: ext.Name, Success: false, Error: err}
	}
	if err != nil {
		config.logger().Error("extension build failed",
			zap.String("extension", ext.Name),
			zap.String("builder", builder.Name()),
			zap.Error(err))
	}
	return result, err
}

// CleanAll removes the build artifacts of every extension.
func (f *BuilderFactory) CleanAll(ctx context.Context, config *BuildConfig, extensions []*Extension) error {
	builder, err := f.BuilderFor(config.CompilerType)
	if err != nil {
		return err
	}
	var errs []error
	for _, ext := range extensions {
		if err := builder.Clean(ctx, config, ext); err != nil {
			errs = append(errs, fmt.Errorf("cleaning %s: %w", ext.Name, err))
		}
	}
	return errors.Join(errs...)
}
