package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sat-detect/internal/domain/port"
)

// stagedFile временный файл рядом с итоговым, Commit переименовывает его
type stagedFile struct {
	tmp       string
	path      string
	committed bool
}

// stageFile пишет содержимое во временный файл в каталоге path
func stageFile(path string, write func(w io.Writer) error) (_ *stagedFile, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err = write(buf); err != nil {
		return nil, err
	}
	if err = buf.Flush(); err != nil {
		return nil, fmt.Errorf("flush %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", path, err)
	}
	return &stagedFile{tmp: tmp.Name(), path: path}, nil
}

// Commit переносит файл под итоговое имя
func (f *stagedFile) Commit() error {
	if f.committed {
		return nil
	}
	if err := os.Rename(f.tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", f.path, err)
	}
	f.committed = true
	return nil
}

// Discard удаляет временный файл, а после Commit итоговый
func (f *stagedFile) Discard() error {
	name := f.tmp
	if f.committed {
		name = f.path
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var _ port.StagedWrite = (*stagedFile)(nil)
