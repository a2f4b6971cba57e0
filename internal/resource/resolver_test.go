package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const served = "server-fueldata.csv"

func newResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "served")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, served), []byte("Time\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.csv"), []byte("x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, served), []byte("decoy\n"), 0o644))

	r, err := NewResolver(dir, served)
	require.NoError(t, err)
	return r, dir
}

func TestResolver_AcceptsCanonicalSpellings(t *testing.T) {
	r, dir := newResolver(t)
	want := filepath.Join(dir, served)
	assert.Equal(t, want, r.Path())
	assert.Equal(t, dir, r.Dir())

	for _, p := range []string{
		"/server-fueldata.csv",
		"//server-fueldata.csv",
		"/./server-fueldata.csv",
		"/sub/../server-fueldata.csv",
		"/server-fueldata.csv/",
		"/%73erver-fueldata.csv",
		"/%2Fserver-fueldata.csv",
		"/../served/server-fueldata.csv",
	} {
		t.Run(p, func(t *testing.T) {
			got, err := r.Resolve(p)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestResolver_RejectsEverythingElse(t *testing.T) {
	r, _ := newResolver(t)

	for _, p := range []string{
		"/",
		"",
		"/other.csv",
		"/SERVER-FUELDATA.CSV",
		"/server-fueldata.csv.bak",
		"/sub/server-fueldata.csv",
		"/../secret.csv",
		"/..%2Fsecret.csv",
		"/%2e%2e/server-fueldata.csv",
		"/../server-fueldata.csv",
		"/../../../../etc/passwd",
		"/server-fueldata.csv%00",
		"/%zz",
	} {
		t.Run(p, func(t *testing.T) {
			_, err := r.Resolve(p)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestNewResolver_RejectsNonPlainFileNames(t *testing.T) {
	for _, f := range []string{"", ".", "..", "sub/file.csv", "../file.csv"} {
		_, err := NewResolver(t.TempDir(), f)
		assert.Error(t, err, "file %q", f)
	}
}
