package pyext

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCasacoreExtensions(t *testing.T) {
	exts := CasacoreExtensions(3, []string{"/inc/pybind11"})

	names := make([]string, 0, len(exts))
	for _, ext := range exts {
		names = append(names, ext.Name)
		assert.Equal(t, "c++", ext.Language)
		assert.Equal(t, []string{"/inc/pybind11"}, ext.IncludeDirs)
		assert.Contains(t, ext.Libraries, "casa_python3")
		assert.NotEmpty(t, ext.Sources)
		assert.Len(t, ext.Depends, 1)
	}

	assert.Equal(t, []string{
		"casacore.fitting._fitting",
		"casacore.functionals._functionals",
		"casacore.images._images",
		"casacore.measures._measures",
		"casacore.quanta._quanta",
		"casacore.tables._tables",
	}, names)

	quanta := exts[4]
	assert.Equal(t, []string{"src/quanta.cc", "src/quantamath.cc", "src/quantity.cc", "src/quantvec.cc"}, quanta.Sources)
	assert.Equal(t, []string{"casa_casa", "casa_python3"}, quanta.Libraries)
}

func TestCasacoreExtensionsPython2(t *testing.T) {
	for _, ext := range CasacoreExtensions(2, nil) {
		assert.Contains(t, ext.Libraries, "casa_python")
		assert.NotContains(t, ext.Libraries, "casa_python3")
	}
}

func TestCasacoreExtensionsIncludeDirsNotShared(t *testing.T) {
	exts := CasacoreExtensions(3, []string{"/inc"})
	exts[0].IncludeDirs[0] = "/changed"
	assert.Equal(t, "/inc", exts[1].IncludeDirs[0])
}

func TestResolveDepends(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "libcasa_casa.so"))
	touch(t, filepath.Join(dir, "libcasa_python3.so"))
	touch(t, filepath.Join(dir, "libboost_python.so"))

	exts := []*Extension{{
		Name:      "casacore.quanta._quanta",
		Depends:   []string{"src/quanta.h"},
		Libraries: []string{"casa_casa", "casa_python3", "casa_missing", "boost_python"},
	}}

	ResolveDepends(exts, &LibraryResolver{Dirs: []string{dir}, GOOS: "linux"})

	assert.Equal(t, []string{
		"src/quanta.h",
		filepath.Join(dir, "libcasa_casa.so"),
		filepath.Join(dir, "libcasa_python3.so"),
	}, exts[0].Depends)
}

func TestExtensionPaths(t *testing.T) {
	ext := &Extension{Name: "casacore.tables._tables", Sources: []string{"src/pytable.cc"}, Depends: []string{"src/tables.h", "/usr/lib/libcasa_tables.so"}}

	assert.Equal(t, filepath.Join("casacore", "tables", "_tables"), ext.ModulePath())
	assert.Equal(t, "_tables", ext.ShortName())
	assert.Equal(t,
		filepath.Join("build", "lib", "casacore", "tables", "_tables.cpython-311-x86_64-linux-gnu.so"),
		ext.OutputPath(filepath.Join("build", "lib"), ".cpython-311-x86_64-linux-gnu.so"))
	assert.Equal(t,
		filepath.Join("build", "temp", "src", "pytable.o"),
		ext.ObjectPath(filepath.Join("build", "temp"), "src/pytable.cc", ".o"))

	prereqs := ext.Prerequisites("/project")
	require.Len(t, prereqs, 3)
	assert.Equal(t, filepath.Join("/project", "src", "pytable.cc"), prereqs[0])
	assert.Equal(t, "/usr/lib/libcasa_tables.so", prereqs[2])
}
