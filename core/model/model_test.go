package model

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nggra/obesity/pkg/errors"
)

type blob struct {
	Name   string
	Values []float64
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())
	var nf *errors.NotFittedError
	require.True(t, errors.As(s.RequireFitted("Forest", "Predict"), &nf))
	assert.Equal(t, "Predict", nf.Method)

	s.SetDimensions(16, 100)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("Forest", "Predict"))
	assert.NoError(t, s.RequireFeatures("Forest.Predict", 16))

	var de *errors.DimensionError
	require.True(t, errors.As(s.RequireFeatures("Forest.Predict", 3), &de))
	assert.Equal(t, 16, de.Expected)
	assert.Equal(t, 3, de.Got)

	s.Reset()
	assert.False(t, s.IsFitted())
	f, n := s.GetDimensions()
	assert.Zero(t, f)
	assert.Zero(t, n)
}

func TestBaseEstimator(t *testing.T) {
	var e BaseEstimator
	assert.False(t, e.IsFitted())
	e.SetFitted()
	assert.True(t, e.IsFitted())
	e.Reset()
	assert.Equal(t, NotFitted, e.State)
}

func TestSaveLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.gob")
	in := &blob{Name: "scaler", Values: []float64{1, 2.5}}
	require.NoError(t, SaveModel(in, path))

	var out blob
	require.NoError(t, LoadModel(&out, path))
	assert.Equal(t, *in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadModelErrors(t *testing.T) {
	var out blob
	assert.Error(t, LoadModel(&out, filepath.Join(t.TempDir(), "absent.gob")))
	assert.Error(t, LoadModelFromReader(&out, bytes.NewBufferString("garbage")))
}

func TestWriteTempFuncRemovesOnFailure(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteTempFunc(dir, "model.gob", func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("encoder failed")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteTemp(t *testing.T) {
	dir := t.TempDir()
	name, err := WriteTemp(&blob{Name: "x"}, dir, "model.gob")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(name))
	assert.Contains(t, filepath.Base(name), ".model.gob.tmp-")

	var out blob
	require.NoError(t, LoadModel(&out, name))
	assert.Equal(t, "x", out.Name)
}
