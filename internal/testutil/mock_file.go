// mock_file.go - Fake candidate files for testing
package testutil

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/whenitworks/backend/internal/intake"
)

// ErrMockRead is returned by files built to fail.
var ErrMockRead = errors.New("mock read failure")

// MockFile implements intake.File with a declared size that may differ from
// its content, so size limits can be tested without large buffers.
type MockFile struct {
	FileName  string
	FileSize  int64
	Content   []byte
	OpenErr   error
	ReadErr   error
	openCount int
	mu        sync.Mutex
}

// NewMockFile creates a file whose declared size matches its content.
func NewMockFile(name, content string) *MockFile {
	return &MockFile{
		FileName: name,
		FileSize: int64(len(content)),
		Content:  []byte(content),
	}
}

// NewSizedFile creates an empty file that claims to be size bytes long.
func NewSizedFile(name string, size int64) *MockFile {
	return &MockFile{FileName: name, FileSize: size}
}

// NewUnreadableFile creates a file whose Open fails.
func NewUnreadableFile(name string) *MockFile {
	return &MockFile{FileName: name, FileSize: 10, OpenErr: ErrMockRead}
}

// NewBrokenFile creates a file that opens but fails mid-read.
func NewBrokenFile(name, prefix string) *MockFile {
	return &MockFile{
		FileName: name,
		FileSize: int64(len(prefix)) + 10,
		Content:  []byte(prefix),
		ReadErr:  ErrMockRead,
	}
}

func (m *MockFile) Name() string { return m.FileName }
func (m *MockFile) Size() int64  { return m.FileSize }

func (m *MockFile) Open() (io.ReadCloser, error) {
	m.mu.Lock()
	m.openCount++
	m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	var r io.Reader = bytes.NewReader(m.Content)
	if m.ReadErr != nil {
		r = io.MultiReader(r, errReader{err: m.ReadErr})
	}
	return io.NopCloser(r), nil
}

// OpenCount reports how many times the file was opened.
func (m *MockFile) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCount
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// BlockingFile is a file whose first Read waits until Release is called.
type BlockingFile struct {
	FileName string
	Content  string
	Opened   chan struct{}
	release  chan struct{}
	once     sync.Once
}

// NewBlockingFile creates a BlockingFile.
func NewBlockingFile(name, content string) *BlockingFile {
	return &BlockingFile{
		FileName: name,
		Content:  content,
		Opened:   make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
}

// Release unblocks pending and future reads.
func (b *BlockingFile) Release() {
	b.once.Do(func() { close(b.release) })
}

func (b *BlockingFile) Name() string { return b.FileName }
func (b *BlockingFile) Size() int64  { return int64(len(b.Content)) }

func (b *BlockingFile) Open() (io.ReadCloser, error) {
	select {
	case b.Opened <- struct{}{}:
	default:
	}
	return io.NopCloser(&gatedReader{gate: b.release, r: strings.NewReader(b.Content)}), nil
}

type gatedReader struct {
	gate <-chan struct{}
	r    io.Reader
}

func (g *gatedReader) Read(p []byte) (int, error) {
	<-g.gate
	return g.r.Read(p)
}

var _ intake.File = (*MockFile)(nil)
var _ intake.File = (*BlockingFile)(nil)

// NewMultipartRequest builds a request carrying one file in the given form field.
func NewMultipartRequest(method, target, field, name string, content []byte) *http.Request {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	if name != "" {
		part, _ := writer.CreateFormFile(field, name)
		part.Write(content)
	}
	writer.Close()

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
