package pyext

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// execCommandContext builds commands; replaced in tests.
var execCommandContext = exec.CommandContext

// execLookPath finds executables; replaced in tests.
var execLookPath = exec.LookPath

// pythonProbeScript prints what the build needs to know about the
// interpreter as one JSON document.
const pythonProbeScript = `
import json, sys, sysconfig
info = {
    "major": sys.version_info[0],
    "minor": sys.version_info[1],
    "prefix": sys.prefix,
    "include_dir": sysconfig.get_paths()["include"],
    "ext_suffix": sysconfig.get_config_var("EXT_SUFFIX") or sysconfig.get_config_var("SO") or "",
    "opt": sysconfig.get_config_var("OPT") or "",
    "cxx": sysconfig.get_config_var("CXX") or "",
    "ldshared": sysconfig.get_config_var("LDSHARED") or "",
    "ccshared": sysconfig.get_config_var("CCSHARED") or "",
    "pybind11_includes": [],
}
try:
    import pybind11
    info["pybind11_includes"] = [pybind11.get_include(), pybind11.get_include(True)]
except Exception:
    pass
print(json.dumps(info))
`

// PythonInfo describes the interpreter the extensions are built for.
type PythonInfo struct {
	Executable       string   `json:"-"`
	Major            int      `json:"major"`
	Minor            int      `json:"minor"`
	Prefix           string   `json:"prefix"`
	IncludeDir       string   `json:"include_dir"`
	ExtSuffix        string   `json:"ext_suffix"`
	Opt              string   `json:"opt"`
	CXX              string   `json:"cxx"`
	LDShared         string   `json:"ldshared"`
	CCShared         string   `json:"ccshared"`
	Pybind11Includes []string `json:"pybind11_includes"`
}

// DefaultPython returns the interpreter to probe: PYEXT_PYTHON if set,
// otherwise python3 (python on Windows).
func DefaultPython() string {
	if python := os.Getenv("PYEXT_PYTHON"); python != "" {
		return python
	}
	if runtime.GOOS == platformWindows {
		return "python"
	}
	return "python3"
}

// DetectPython runs the interpreter once and decodes its configuration.
func DetectPython(ctx context.Context, executable string) (*PythonInfo, error) {
	if executable == "" {
		executable = DefaultPython()
	}
	path, err := execLookPath(executable)
	if err != nil {
		return nil, fmt.Errorf("python interpreter %s not found: %w", executable, err)
	}

	cmd := execCommandContext(ctx, path, "-c", pythonProbeScript)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probing python interpreter %s: %w", path, err)
	}

	info, err := parsePythonInfo(output)
	if err != nil {
		return nil, err
	}
	info.Executable = path
	return info, nil
}

func parsePythonInfo(output []byte) (*PythonInfo, error) {
	info := &PythonInfo{}
	if err := json.Unmarshal(output, info); err != nil {
		return nil, fmt.Errorf("decoding python configuration: %w", err)
	}
	if info.Major == 0 {
		return nil, fmt.Errorf("decoding python configuration: missing version")
	}
	info.Pybind11Includes = uniqueStrings(info.Pybind11Includes)
	return info, nil
}

// CompilerCommand returns the first word of the interpreter's CXX setting.
func (p *PythonInfo) CompilerCommand() string {
	if p == nil {
		return ""
	}
	if fields := strings.Fields(p.CXX); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func defaultExtSuffix() string {
	switch runtime.GOOS {
	case platformWindows:
		return ".pyd"
	default:
		return ".so"
	}
}
