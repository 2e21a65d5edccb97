package pyext

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// pythonLibPlaceholder in a manifest library list expands to the casacore
// python glue library of the target interpreter.
const pythonLibPlaceholder = "{{python_lib}}"

// Manifest lists extension targets, replacing the built-in table.
//
//	extensions:
//	  - name: casacore.quanta._quanta
//	    sources: [src/quanta.cc, src/quantamath.cc]
//	    depends: [src/quanta.h]
//	    libraries: [casa_casa, "{{python_lib}}"]
type Manifest struct {
	Extensions []*Extension `yaml:"extensions" validate:"required,min=1,dive"`
}

// LoadManifest reads and validates a YAML manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := structValidator().Struct(m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	seen := make(map[string]struct{})
	for _, ext := range m.Extensions {
		if _, dup := seen[ext.Name]; dup {
			return nil, fmt.Errorf("invalid manifest: duplicate extension %s", ext.Name)
		}
		seen[ext.Name] = struct{}{}
	}
	return m, nil
}

// Resolve returns copies of the manifest extensions for the given Python
// major version, with includeDirs appended and the python library
// placeholder expanded.
func (m *Manifest) Resolve(pythonMajor int, includeDirs []string) []*Extension {
	casaPython := PythonLibrary(pythonMajor)
	exts := make([]*Extension, 0, len(m.Extensions))

	for _, src := range m.Extensions {
		ext := &Extension{
			Name:        src.Name,
			Sources:     append([]string{}, src.Sources...),
			Depends:     append([]string{}, src.Depends...),
			IncludeDirs: append(append([]string{}, src.IncludeDirs...), includeDirs...),
			Language:    src.Language,
		}
		if ext.Language == "" {
			ext.Language = "c++"
		}
		for _, lib := range src.Libraries {
			if lib == pythonLibPlaceholder {
				lib = casaPython
			}
			ext.Libraries = append(ext.Libraries, lib)
		}
		exts = append(exts, ext)
	}
	return exts
}
