package pyext

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// runCommonBuild executes the standard 3-step build process.
//
// # Process Flow
//
//  1. Create empty BuildResult
//  2. Skip the extension when its module is newer than every source and
//     depend file (unless config.Force is set)
//  3. Call ConfigureFunc to prepare the build
//  4. Call BuildFunc to compile and link
//  5. Call FindFunc to locate the compiled module
//  6. Return BuildResult with Success=true
//
// If any step fails, processing stops and the error is returned
// with Success=false. The BuildResult.Output field is populated by the
// step functions as they execute.
func runCommonBuild(ctx context.Context, config *BuildConfig, ext *Extension, steps CommonBuildSteps) (*BuildResult, error) {
	result := &BuildResult{
		Name:    ext.Name,
		Success: false,
		Output:  []string{},
	}
	log := config.logger().With(zap.String("extension", ext.Name))

	target := ext.OutputPath(config.BuildLib, config.extSuffix())
	if !config.Force && upToDate(target, ext.Prerequisites(config.ProjectDir)) {
		log.Debug("skipping up to date extension", zap.String("target", target))
		result.Skipped = true
		result.Success = true
		result.Extensions = []string{target}
		return result, nil
	}

	// Step 1: Configure/prepare the build
	if err := steps.ConfigureFunc(ctx, config, ext, result); err != nil {
		result.Error = err
		return result, err
	}

	// Step 2: Compile and link
	log.Info("building extension", zap.String("target", target))
	if err := steps.BuildFunc(ctx, config, ext, result); err != nil {
		result.Error = err
		return result, err
	}

	// Step 3: Find the built extension files
	extensions, err := steps.FindFunc(config, ext)
	if err != nil {
		result.Error = err
		return result, err
	}

	result.Extensions = extensions
	result.Success = true
	return result, nil
}

// upToDate reports whether target exists and is newer than every
// prerequisite. A missing prerequisite counts as newer, forcing a rebuild.
func upToDate(target string, prerequisites []string) bool {
	info, err := os.Stat(target)
	if err != nil {
		return false
	}
	targetTime := info.ModTime()

	for _, prereq := range prerequisites {
		pinfo, err := os.Stat(prereq)
		if err != nil {
			return false
		}
		if pinfo.ModTime().After(targetTime) {
			return false
		}
	}
	return true
}

// projectPath resolves path relative to the project directory.
func projectPath(projectDir, path string) string {
	if filepath.IsAbs(path) || projectDir == "" {
		return path
	}
	return filepath.Join(projectDir, path)
}
