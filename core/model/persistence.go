package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/nggra/obesity/pkg/errors"
)

// SaveModelToWriter gob-encodes model to w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader gob-decodes into model, which must be a pointer.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// SaveModel writes model to filename. The file only appears once the
// encoding has fully succeeded.
//
//	var scaler preprocessing.StandardScaler
//	// ... fit ...
//	err := model.SaveModel(&scaler, "scaler.gob")
func SaveModel(model interface{}, filename string) error {
	tmp, err := WriteTemp(model, filepath.Dir(filename), filepath.Base(filename))
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, filename); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to move model into place")
	}
	return nil
}

// WriteTemp encodes model into a new temporary file in dir and returns its
// path. The caller renames or removes it.
func WriteTemp(model interface{}, dir, pattern string) (string, error) {
	return WriteTempFunc(dir, pattern, func(w io.Writer) error {
		return SaveModelToWriter(model, w)
	})
}

// WriteTempFunc creates a temporary file in dir, lets write fill it and
// syncs it. On any failure the file is removed.
func WriteTempFunc(dir, pattern string, write func(w io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, "."+pattern+".tmp-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create file")
	}
	name := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", errors.Wrap(err, "failed to sync file")
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", errors.Wrap(err, "failed to close file")
	}
	return name, nil
}

// LoadModel reads a gob file written by SaveModel.
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return LoadModelFromReader(model, file)
}
