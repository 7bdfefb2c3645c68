// Package intake validates user-selected files and reads them as text.
package intake

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// File is a candidate file selected by the user.
type File interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

type headerFile struct {
	fh *multipart.FileHeader
}

// FromHeader wraps a multipart upload.
func FromHeader(fh *multipart.FileHeader) File {
	return headerFile{fh: fh}
}

func (f headerFile) Name() string { return f.fh.Filename }
func (f headerFile) Size() int64  { return f.fh.Size }

func (f headerFile) Open() (io.ReadCloser, error) {
	return f.fh.Open()
}

type bytesFile struct {
	name string
	data []byte
}

// FromBytes wraps in-memory content, e.g. a file received over a WebSocket.
func FromBytes(name string, data []byte) File {
	return bytesFile{name: name, data: data}
}

func (f bytesFile) Name() string { return f.name }
func (f bytesFile) Size() int64  { return int64(len(f.data)) }

func (f bytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type localFile struct {
	path string
	size int64
}

// FromPath stats a file on the local filesystem. The content is opened lazily.
func FromPath(path string) (File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return localFile{path: path, size: st.Size()}, nil
}

func (f localFile) Name() string { return filepath.Base(f.path) }
func (f localFile) Size() int64  { return f.size }

func (f localFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}
