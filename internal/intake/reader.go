package intake

import (
	"context"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadResult is the single value delivered by ReadAsText.
type ReadResult struct {
	Text string
	Err  error
}

// ReadAsText starts reading f in the background and returns a channel that
// receives exactly one result. Content is decoded the way browsers decode
// text files: UTF-8 by default, a byte order mark selects UTF-8 or UTF-16 and
// is stripped, invalid sequences become U+FFFD.
//
// Cancelling ctx aborts the read with a *ReadError.
func ReadAsText(ctx context.Context, f File) <-chan ReadResult {
	out := make(chan ReadResult, 1)
	go func() {
		text, err := readText(ctx, f)
		out <- ReadResult{Text: text, Err: err}
	}()
	return out
}

func readText(ctx context.Context, f File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ReadError{FileName: f.Name(), Err: err}
	}

	rc, err := f.Open()
	if err != nil {
		return "", &ReadError{FileName: f.Name(), Err: err}
	}
	defer rc.Close()

	dec := transform.NewReader(&ctxReader{ctx: ctx, r: rc}, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(dec)
	if err != nil {
		return "", &ReadError{FileName: f.Name(), Err: err}
	}
	return string(data), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
