package pyext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallInplace(t *testing.T) {
	project := t.TempDir()
	buildLib := filepath.Join(project, "build", "lib.linux-x86_64-3.11")

	quanta := filepath.Join(buildLib, "casacore", "quanta", "_quanta.so")
	tables := filepath.Join(buildLib, "casacore", "tables", "_tables.so")
	touch(t, quanta)
	touch(t, tables)
	require.NoError(t, os.Chmod(quanta, 0o755))

	outside := filepath.Join(t.TempDir(), "_other.so")
	touch(t, outside)

	config := &BuildConfig{ProjectDir: project, BuildLib: buildLib}
	results := []*BuildResult{
		{Name: "casacore.quanta._quanta", Success: true, Extensions: []string{quanta, outside}},
		{Name: "casacore.tables._tables", Success: true, Skipped: true, Extensions: []string{tables}},
		{Name: "casacore.images._images", Success: false},
		nil,
	}

	installed, err := InstallInplace(config, results)
	require.NoError(t, err)
	assert.Equal(t, []string{"casacore/quanta/_quanta.so", "casacore/tables/_tables.so"}, installed)

	dest := filepath.Join(project, "casacore", "quanta", "_quanta.so")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "lib", string(data))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	assert.NoFileExists(t, filepath.Join(project, "_other.so"))
}

func TestInstallInplaceSkipsWhenBuildLibIsProject(t *testing.T) {
	project := t.TempDir()
	module := filepath.Join(project, "casacore", "quanta", "_quanta.so")
	touch(t, module)

	config := &BuildConfig{ProjectDir: project, BuildLib: project}
	installed, err := InstallInplace(config, []*BuildResult{{Name: "q", Success: true, Extensions: []string{module}}})
	require.NoError(t, err)
	assert.Empty(t, installed)
	assert.FileExists(t, module)
}

func TestInstallInplaceNeedsProjectDir(t *testing.T) {
	_, err := InstallInplace(&BuildConfig{BuildLib: t.TempDir()}, nil)
	assert.Error(t, err)
}
