package nvm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// File is a medium backed by a raw image file. Every write is followed by
// an fsync.
type File struct {
	f    *os.File
	size int
}

// OpenFile opens the image at path, creating it erased to size bytes if it
// does not exist. An existing image shorter than size is extended with
// erased bytes.
func OpenFile(path string, size int) (*File, error) {
	if size <= 0 {
		return nil, fmt.Errorf("file medium: invalid size %d", size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("file medium: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("file medium: stat %s: %w", path, err)
	}
	if cur := int(st.Size()); cur < size {
		fill := bytes.Repeat([]byte{Erased}, size-cur)
		if _, err := f.WriteAt(fill, int64(cur)); err != nil {
			f.Close()
			return nil, fmt.Errorf("file medium: erase %s: %w", path, err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("file medium: sync %s: %w", path, err)
		}
	}
	return &File{f: f, size: size}, nil
}

func (d *File) ReadBlock(addr, n int) ([]byte, error) {
	if err := checkRange(d.size, addr, n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := d.f.ReadAt(buf, int64(addr)); err != nil && !errors.Is(err, io.EOF) {
		return nil, faultf("file: read %d@%d: %v", n, addr, err)
	}
	return buf, nil
}

func (d *File) WriteBlock(addr int, data []byte) error {
	if err := checkRange(d.size, addr, len(data)); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(data, int64(addr)); err != nil {
		return faultf("file: write %d@%d: %v", len(data), addr, err)
	}
	if err := d.f.Sync(); err != nil {
		return faultf("file: sync: %v", err)
	}
	return nil
}

func (d *File) Size() int {
	return d.size
}

func (d *File) Close() error {
	return d.f.Close()
}
