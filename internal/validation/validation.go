// Package validation checks untrusted names, paths and uploads before the
// compiler reads them: quiz files named on the command line, image
// references inside a quiz, and documents posted to the HTTP service.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input limits (CWE-400).
const (
	// MaxFileSize bounds a quiz file read from disk (64 MB).
	MaxFileSize = 64 << 20
	// MaxNameLength bounds a document name in bytes.
	MaxNameLength = 255
	// MaxPathLength bounds any path.
	MaxPathLength = 4096
)

var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrPathTraversal    = errors.New("path leaves the document directory")
	ErrInvalidName      = errors.New("invalid document name")
	ErrNotText          = errors.New("not UTF-8 text")
)

// checkChars rejects NUL and control characters, which no file system
// path of a quiz or image needs.
func checkChars(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if r == 0 {
			return fmt.Errorf("%w: null byte", ErrInvalidCharacter)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character %U", ErrInvalidCharacter, r)
		}
	}
	return nil
}

// ValidatePath checks a path given by the user on the command line. Any
// location is allowed; only malformed paths are refused.
func ValidatePath(path string) error {
	return checkChars(path)
}

// SanitizePath resolves ref, a slash-separated reference found in a
// document, against baseDir. The result is the cleaned path relative to
// baseDir; references that are absolute or climb out of baseDir are
// refused.
func SanitizePath(baseDir, ref string) (string, error) {
	if err := checkChars(ref); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" || strings.HasPrefix(ref, "/") {
		return "", fmt.Errorf("%w: absolute path", ErrPathTraversal)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve document directory: %w", err)
	}
	rel, err := filepath.Rel(base, filepath.Join(base, clean))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return clean, nil
}

// SanitizeFilename turns a client-supplied document name into a label
// that is safe to print in diagnostics and headers. Separators become
// underscores, control characters are dropped, runs of white space
// collapse, and leading dots and hyphens are trimmed.
func SanitizeFilename(name string) (string, error) {
	var b strings.Builder
	space := false
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			r = '_'
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case unicode.IsControl(r) || r == utf8.RuneError:
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	clean := strings.TrimLeft(b.String(), ".-")
	if clean == "" {
		return "", fmt.Errorf("%w: %q has no usable characters", ErrInvalidName, name)
	}
	if len(clean) > MaxNameLength {
		cut := MaxNameLength
		for cut > 0 && !utf8.RuneStart(clean[cut]) {
			cut--
		}
		clean = clean[:cut]
	}
	return clean, nil
}

// ValidateName accepts a client-supplied document label only when it is
// already in the form SanitizeFilename produces, so separators, traversal
// and control characters are refused rather than rewritten.
func ValidateName(name string) error {
	clean, err := SanitizeFilename(name)
	if err != nil {
		return err
	}
	if clean != name {
		return fmt.Errorf("%w: %q must be a plain file name", ErrInvalidName, name)
	}
	return nil
}

// IsQuizText reports whether data can be quiz source: valid UTF-8 that
// sniffs as text.
func IsQuizText(data []byte) bool {
	return utf8.Valid(data) && DetectFileType(data) == FileTypeText
}

// CheckQuizText is IsQuizText as an error naming what data looks like.
func CheckQuizText(data []byte) error {
	if IsQuizText(data) {
		return nil
	}
	ft := DetectFileType(data)
	if ft == FileTypeUnknown || ft == FileTypeText {
		return ErrNotText
	}
	return fmt.Errorf("%w: content is %s", ErrNotText, ft)
}
