package pyext

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// MatchesPattern checks if a name matches any of the given regex patterns.
//
// Invalid patterns are silently skipped.
//
// # Example
//
//	if MatchesPattern(compiler, `(^|/)(g\+\+|clang\+\+|c\+\+)$`) {
//	    // Handle a unix style compiler
//	}
func MatchesPattern(name string, patterns ...string) bool {
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, name); matched {
			return true
		}
	}
	return false
}

// MatchesExtension checks if a filename has any of the given extensions.
//
// This is a case-insensitive check, useful for telling C++ sources
// (.cc, .cpp) from headers and shared objects.
func MatchesExtension(filename string, extensions ...string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// BuildError creates a standardized build error with output context.
//
// # Format
//
// With error and output:
//
//	Compile build failed: exit status 1
//
//	Build output:
//	src/fit.cc:12: error: ...
//
// With error but no output:
//
//	Compile build failed: exit status 1
func BuildError(builder string, output []string, err error) error {
	outputStr := strings.TrimSpace(strings.Join(output, "\n"))

	var prefix string
	if err != nil {
		prefix = fmt.Sprintf("%s build failed: %v", builder, err)
	} else {
		prefix = fmt.Sprintf("%s build failed", builder)
	}

	if outputStr != "" {
		return fmt.Errorf("%s\n\nBuild output:\n%s", prefix, outputStr)
	}

	return fmt.Errorf("%s", prefix)
}

// buildEnv returns base (the process environment when nil) extended with
// the configured variables, in a stable order.
func buildEnv(base []string, env map[string]string) []string {
	if base == nil {
		base = os.Environ()
	}
	result := append([]string{}, base...)
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		result = append(result, fmt.Sprintf("%s=%s", key, env[key]))
	}
	return result
}

func splitLines(output []byte) []string {
	text := strings.TrimRight(string(output), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	var result []string

	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}

	return result
}
