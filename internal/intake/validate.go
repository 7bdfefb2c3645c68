package intake

import (
	"errors"
	"slices"
	"strings"
)

// DefaultMaxFileSize is the ceiling used when none is configured (10 MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Policy holds the validator parameters. The validator does not know where
// they come from.
type Policy struct {
	// AcceptedExtensions are normalized: lower-case, no leading dot.
	// An empty list accepts every extension.
	AcceptedExtensions []string
	MaxSizeBytes       int64
}

// NewPolicy normalizes the accepted extensions and checks the ceiling.
func NewPolicy(accepted []string, maxSize int64) (Policy, error) {
	if maxSize <= 0 {
		return Policy{}, errors.New("max file size must be positive")
	}
	return Policy{
		AcceptedExtensions: NormalizeExtensions(accepted),
		MaxSizeBytes:       maxSize,
	}, nil
}

// Validate checks f against the policy.
func (p Policy) Validate(f File) error {
	return Validate(f, p.AcceptedExtensions, p.MaxSizeBytes)
}

// AcceptAttr renders the extensions for an HTML accept attribute (".ics,.ical").
func (p Policy) AcceptAttr() string {
	dotted := make([]string, len(p.AcceptedExtensions))
	for i, ext := range p.AcceptedExtensions {
		dotted[i] = "." + ext
	}
	return strings.Join(dotted, ",")
}

// Validate checks the extension of f against accepted and its size against
// maxSize. The extension check runs first. An empty accepted list skips the
// extension check entirely; this permissive default is intentional.
func Validate(f File, accepted []string, maxSize int64) error {
	accepted = NormalizeExtensions(accepted)
	if len(accepted) > 0 {
		ext, ok := Extension(f.Name())
		if !ok || !slices.Contains(accepted, ext) {
			return invalidTypeError(f.Name(), accepted)
		}
	}
	if f.Size() > maxSize {
		return tooLargeError(f.Name(), maxSize)
	}
	return nil
}

// Extension returns the lower-cased text after the final dot of name.
// ok is false when name contains no dot.
func Extension(name string) (ext string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", false
	}
	return strings.ToLower(name[i+1:]), true
}

// NormalizeExtensions trims, lower-cases and strips a leading dot from each
// entry, dropping empties and duplicates. Order is preserved.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		e = strings.TrimPrefix(e, ".")
		if e == "" || slices.Contains(out, e) {
			continue
		}
		out = append(out, e)
	}
	return out
}
