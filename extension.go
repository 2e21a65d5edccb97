package pyext

import (
	"path/filepath"
	"strings"
)

// Extension describes one native extension module target.
type Extension struct {
	// Name is the dotted module path, e.g. casacore.quanta._quanta.
	Name string `yaml:"name" validate:"required"`
	// Sources are the C++ sources, relative to the project directory.
	Sources []string `yaml:"sources" validate:"required,min=1"`
	// Depends lists headers and libraries whose change forces a rebuild.
	Depends []string `yaml:"depends"`
	// Libraries are the native libraries to link, by short name.
	Libraries   []string `yaml:"libraries" validate:"required,min=1"`
	IncludeDirs []string `yaml:"include_dirs"`
	Language    string   `yaml:"language" validate:"omitempty,oneof=c c++"`
}

// PythonLibrary returns the casacore python glue library name for a
// Python major version.
func PythonLibrary(pythonMajor int) string {
	if pythonMajor == 2 {
		return "casa_python"
	}
	return "casa_python3"
}

// CasacoreExtensions returns the six extension targets of the wrapper.
// includeDirs is added to every target (normally the pybind11 headers).
func CasacoreExtensions(pythonMajor int, includeDirs []string) []*Extension {
	casaPython := PythonLibrary(pythonMajor)
	inc := func() []string { return append([]string{}, includeDirs...) }

	return []*Extension{
		{
			Name:        "casacore.fitting._fitting",
			Sources:     []string{"src/fit.cc", "src/fitting.cc"},
			Depends:     []string{"src/fitting.h"},
			Libraries:   []string{"casa_scimath", "casa_scimath_f", casaPython},
			IncludeDirs: inc(),
			Language:    "c++",
		},
		{
			Name:        "casacore.functionals._functionals",
			Sources:     []string{"src/functional.cc", "src/functionals.cc"},
			Depends:     []string{"src/functionals.h"},
			Libraries:   []string{"casa_scimath", "casa_scimath_f", casaPython},
			IncludeDirs: inc(),
			Language:    "c++",
		},
		{
			Name:    "casacore.images._images",
			Sources: []string{"src/images.cc", "src/pyimages.cc"},
			Depends: []string{"src/pyimages.h"},
			Libraries: []string{
				"casa_images", "casa_coordinates",
				"casa_fits", "casa_lattices", "casa_measures",
				"casa_scimath", "casa_scimath_f", "casa_tables", "casa_mirlib",
				casaPython,
			},
			IncludeDirs: inc(),
			Language:    "c++",
		},
		{
			Name:    "casacore.measures._measures",
			Sources: []string{"src/pymeas.cc", "src/pymeasures.cc"},
			Depends: []string{"src/pymeasures.h"},
			Libraries: []string{
				"casa_measures", "casa_scimath", "casa_scimath_f", "casa_tables",
				casaPython,
			},
			IncludeDirs: inc(),
			Language:    "c++",
		},
		{
			Name: "casacore.quanta._quanta",
			Sources: []string{
				"src/quanta.cc", "src/quantamath.cc", "src/quantity.cc",
				"src/quantvec.cc",
			},
			Depends:     []string{"src/quanta.h"},
			Libraries:   []string{"casa_casa", casaPython},
			IncludeDirs: inc(),
			Language:    "c++",
		},
		{
			Name: "casacore.tables._tables",
			Sources: []string{
				"src/pytable.cc", "src/pytableindex.cc", "src/pytableiter.cc",
				"src/pytablerow.cc", "src/tables.cc", "src/pyms.cc",
			},
			Depends:     []string{"src/tables.h"},
			Libraries:   []string{"casa_tables", "casa_ms", casaPython},
			IncludeDirs: inc(),
			Language:    "c++",
		},
	}
}

// ResolveDepends appends the resolved path of every casa library an
// extension links against to its Depends, so a reinstalled casacore
// triggers a rebuild. Libraries that cannot be found are skipped.
func ResolveDepends(exts []*Extension, resolver *LibraryResolver) {
	for _, ext := range exts {
		for _, lib := range ext.Libraries {
			if !strings.Contains(lib, "casa") {
				continue
			}
			if path, err := resolver.Find(lib); err == nil {
				ext.Depends = append(ext.Depends, path)
			}
		}
	}
}

// ModulePath converts the dotted name to a relative path without suffix:
// casacore.quanta._quanta becomes casacore/quanta/_quanta.
func (e *Extension) ModulePath() string {
	return filepath.Join(strings.Split(e.Name, ".")...)
}

// OutputPath is where the linked module is written below buildLib.
func (e *Extension) OutputPath(buildLib, extSuffix string) string {
	return filepath.Join(buildLib, e.ModulePath()+extSuffix)
}

// ObjectPath is the object file for source below the temp build directory.
func (e *Extension) ObjectPath(buildTemp, source, objExt string) string {
	rel := filepath.Clean(source)
	if filepath.IsAbs(rel) {
		rel = strings.TrimLeft(filepath.ToSlash(rel), "/")
	}
	return filepath.Join(buildTemp, strings.TrimSuffix(rel, filepath.Ext(rel))+objExt)
}

// Prerequisites returns sources and depends as paths resolved against
// projectDir.
func (e *Extension) Prerequisites(projectDir string) []string {
	var paths []string
	for _, src := range e.Sources {
		paths = append(paths, projectPath(projectDir, src))
	}
	for _, dep := range e.Depends {
		paths = append(paths, projectPath(projectDir, dep))
	}
	return paths
}

// ShortName returns the last component of the module name, e.g. _quanta.
func (e *Extension) ShortName() string {
	if i := strings.LastIndex(e.Name, "."); i >= 0 {
		return e.Name[i+1:]
	}
	return e.Name
}
