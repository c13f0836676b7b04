package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
	"github.com/thiagokokada/tmplstore/internal/store"
)

func TestManager_Layout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "templates"), m.TemplatesPath())
	assert.Equal(t, filepath.Join(dir, "projects"), m.ProjectsPath())

	tmpl, err := m.Templates()
	require.NoError(t, err)
	assert.Equal(t, m.TemplatesPath(), tmpl.Path())

	again, err := m.Templates()
	require.NoError(t, err)
	assert.Same(t, tmpl, again)
}

func TestManager_CreateAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := NewManager(t.TempDir(), WithStoreOptions(store.WithDefaultBranch("trunk")))
	require.NoError(t, err)

	ids, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	id1, s1, err := m.Create(ctx)
	require.NoError(t, err)
	id2, _, err := m.Create(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	_, err = uuid.Parse(id1)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(m.ProjectsPath(), id1, ".git"))
	require.NoError(t, err, "Create must initialize the repository")

	branches, err := s1.Branches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trunk"}, branches)

	// Stray entries are not projects.
	require.NoError(t, os.MkdirAll(filepath.Join(m.ProjectsPath(), "scratch"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(m.ProjectsPath(), "README"), nil, 0o644))

	ids, err = m.List()
	require.NoError(t, err)
	want := []string{id1, id2}
	if strings.Compare(id1, id2) > 0 {
		want = []string{id2, id1}
	}
	assert.Equal(t, want, ids)

	got, err := m.Project(strings.ToUpper(id1))
	require.NoError(t, err)
	assert.Same(t, s1, got)
}

func TestManager_ProjectErrors(t *testing.T) {
	t.Parallel()

	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.Project("../templates")
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = m.Project(uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = NewManager("")
	require.Error(t, err)
}

func TestManager_WithBackend(t *testing.T) {
	t.Parallel()

	var opened []string
	m, err := NewManager(t.TempDir(), WithBackend(func(path string) (backend.Backend, error) {
		opened = append(opened, path)
		return backend.OpenNative(path)
	}))
	require.NoError(t, err)

	_, err = m.Templates()
	require.NoError(t, err)
	_, err = m.Templates()
	require.NoError(t, err)
	assert.Equal(t, []string{m.TemplatesPath()}, opened)
}

func TestManager_ProjectsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	_, s1, err := m.Create(ctx)
	require.NoError(t, err)
	_, s2, err := m.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, s1.Run(ctx, func(tx *store.Tx) error {
		if err := tx.Checkout(""); err != nil {
			return err
		}
		if err := tx.Write("p.json", []byte("{}")); err != nil {
			return err
		}
		_, err := tx.Commit("add", backend.Signature{Name: "a", Email: "a@example.com"})
		return err
	}))

	files, err := s2.Files(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, files)
	files, err = s1.Files(ctx, "")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
