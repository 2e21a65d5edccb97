package pyext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// InstallInplace copies the built modules from config.BuildLib into the
// project tree, mirroring their package path, and returns the installed
// paths relative to the project directory. Files outside BuildLib are
// left alone.
func InstallInplace(config *BuildConfig, results []*BuildResult) ([]string, error) {
	if config.ProjectDir == "" {
		return nil, fmt.Errorf("in-place install needs a project directory")
	}

	var installed []string
	for _, result := range results {
		if result == nil || !result.Success {
			continue
		}
		for _, built := range result.Extensions {
			rel, ok := buildLibRelative(config.BuildLib, built)
			if !ok {
				continue
			}
			dest := filepath.Join(config.ProjectDir, rel)
			if samePath(built, dest) {
				continue
			}
			if err := copyFile(built, dest); err != nil {
				return installed, fmt.Errorf("installing %s: %w", result.Name, err)
			}
			installed = append(installed, filepath.ToSlash(rel))
		}
	}
	return installed, nil
}

func buildLibRelative(buildLib, path string) (string, bool) {
	rel, err := filepath.Rel(buildLib, path)
	if err != nil {
		return "", false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(destPath)
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return mkErr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
