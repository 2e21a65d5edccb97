package pyext

import (
	"errors"
	"fmt"
	"strings"
)

// ErrToolMissing is returned when a required build tool is not on PATH.
var ErrToolMissing = errors.New("build tools missing")

// ToolChecker is an optional interface for builders that run external
// tools. The tools depend on the configuration: a configured compiler or
// linker replaces the builder's defaults.
//
//	if checker, ok := builder.(ToolChecker); ok {
//	    if _, err := checker.CheckTools(config); err != nil {
//	        return err
//	    }
//	}
type ToolChecker interface {
	// RequiredTools returns the tools a build with config would run.
	RequiredTools(config *BuildConfig) []ToolRequirement

	// CheckTools resolves every required tool on PATH, returning the
	// resolved path per requirement name.
	CheckTools(config *BuildConfig) (map[string]string, error)
}

// ToolRequirement describes a build tool dependency.
//
//	ToolRequirement{
//	    Name:         "c++",
//	    Alternatives: []string{"g++", "clang++"},
//	    Purpose:      "C++ compiler",
//	}
type ToolRequirement struct {
	// Name is the primary executable (e.g. "c++", "cl", "clang++-17").
	Name string

	// Alternatives are tried in order when Name is not on PATH.
	Alternatives []string

	// Optional tools never cause an error.
	Optional bool

	// Purpose describes the tool in error messages.
	Purpose string
}

func (r ToolRequirement) candidates() []string {
	return append([]string{r.Name}, r.Alternatives...)
}

func (r ToolRequirement) String() string {
	if r.Purpose == "" {
		return r.Name
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.Purpose)
}

// ResolveTools finds each requirement on PATH, trying its alternatives in
// order. It returns the resolved paths keyed by requirement name and the
// required tools that could not be found. Optional tools that are missing
// are left out of both.
func ResolveTools(requirements []ToolRequirement) (map[string]string, []ToolRequirement) {
	found := make(map[string]string)
	var missing []ToolRequirement

	for _, req := range requirements {
		path := ""
		for _, candidate := range req.candidates() {
			if p, err := execLookPath(candidate); err == nil {
				path = p
				break
			}
		}
		switch {
		case path != "":
			found[req.Name] = path
		case !req.Optional:
			missing = append(missing, req)
		}
	}
	return found, missing
}

// CheckRequiredTools resolves the requirements and wraps ErrToolMissing
// with every required tool that is not on PATH:
//
//	build tools missing: clang++-17 (C++ compiler), link (MSVC linker)
func CheckRequiredTools(requirements []ToolRequirement) (map[string]string, error) {
	found, missing := ResolveTools(requirements)
	if len(missing) == 0 {
		return found, nil
	}

	names := make([]string, 0, len(missing))
	for _, req := range missing {
		names = append(names, req.String())
	}
	return found, fmt.Errorf("%w: %s", ErrToolMissing, strings.Join(names, ", "))
}

// toolRequirement is a configured executable when set, otherwise the
// default with its alternatives.
func toolRequirement(configured, purpose, fallback string, alternatives ...string) ToolRequirement {
	if configured != "" {
		return ToolRequirement{Name: configured, Purpose: purpose}
	}
	return ToolRequirement{Name: fallback, Alternatives: alternatives, Purpose: purpose}
}
