package intake

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// MaxBytes is the largest accepted upload (10 MiB).
const MaxBytes int64 = 10 * 1024 * 1024

var (
	ErrInvalidType = errors.New("please select an image file")
	ErrTooLarge    = errors.New("file size must be less than 10MB")
)

// File is a candidate upload as handed over by a file picker or a drop.
type File interface {
	Name() string
	Size() int64
	// ContentType is the declared MIME type, not a sniffed one.
	ContentType() string
	Open() (io.ReadCloser, error)
}

// Selection is a validated file. Preview is empty until derivation completes.
type Selection struct {
	File        File
	Name        string
	Size        int64
	ContentType string
	Preview     string
}

// Validate checks the declared type and size of f.
func Validate(f File) (*Selection, error) {
	if f == nil {
		return nil, ErrInvalidType
	}
	if !IsImageType(f.ContentType()) {
		return nil, fmt.Errorf("%w: %q is %q", ErrInvalidType, f.Name(), f.ContentType())
	}
	if f.Size() > MaxBytes {
		return nil, fmt.Errorf("%w: %q is %d bytes", ErrTooLarge, f.Name(), f.Size())
	}
	return &Selection{
		File:        f,
		Name:        f.Name(),
		Size:        f.Size(),
		ContentType: f.ContentType(),
	}, nil
}

func IsImageType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/") && len(mt) > len("image/")
}

// ReadAll returns the complete payload of f.
func ReadAll(f File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return data, nil
}

// DataURI reads f and encodes it as a base64 data URI.
func DataURI(f File) (string, error) {
	data, err := ReadAll(f)
	if err != nil {
		return "", err
	}
	return EncodeDataURI(f.ContentType(), data), nil
}

func EncodeDataURI(contentType string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(contentType) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(contentType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

type memFile struct {
	name        string
	contentType string
	data        []byte
}

// NewFile wraps an in-memory payload.
func NewFile(name, contentType string, data []byte) File {
	return &memFile{name: name, contentType: contentType, data: data}
}

func (m *memFile) Name() string { return m.name }
func (m *memFile) Size() int64 { return int64(len(m.data)) }
func (m *memFile) ContentType() string { return m.contentType }
func (m *memFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

type diskFile struct {
	path        string
	size        int64
	contentType string
}

// OpenPath describes a file on disk. Its declared type comes from the extension.
func OpenPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &diskFile{path: path, size: info.Size(), contentType: ct}, nil
}

func (d *diskFile) Name() string { return filepath.Base(d.path) }
func (d *diskFile) Size() int64 { return d.size }
func (d *diskFile) ContentType() string { return d.contentType }
func (d *diskFile) Open() (io.ReadCloser, error) {
	return os.Open(d.path)
}
