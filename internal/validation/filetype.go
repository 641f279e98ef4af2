package validation

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FileType is a content type the compiler reads or writes.
type FileType string

const (
	FileTypeZip FileType = "zip"

	FileTypeText FileType = "text"
	FileTypeHTML FileType = "html"
	FileTypePDF  FileType = "pdf"

	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
	FileTypeGIF  FileType = "gif"
	FileTypeWebP FileType = "webp"
	FileTypeSVG  FileType = "svg"

	FileTypeUnknown FileType = "unknown"
)

// sniffLen is how much of a file detection looks at.
const sniffLen = 512

var signatures = []struct {
	fileType FileType
	magic    []byte
	offset   int
}{
	{FileTypeZip, []byte("PK\x03\x04"), 0},
	{FileTypeZip, []byte("PK\x05\x06"), 0}, // empty archive
	{FileTypePDF, []byte("%PDF-"), 0},
	{FileTypePNG, []byte("\x89PNG\r\n\x1a\n"), 0},
	{FileTypeJPEG, []byte{0xff, 0xd8, 0xff}, 0},
	{FileTypeGIF, []byte("GIF8"), 0},
	{FileTypeWebP, []byte("WEBP"), 8},
}

var extensions = map[string]FileType{
	".zip":      FileTypeZip,
	".imscc":    FileTypeZip,
	".txt":      FileTypeText,
	".text":     FileTypeText,
	".md":       FileTypeText,
	".markdown": FileTypeText,
	".quiz":     FileTypeText,
	".html":     FileTypeHTML,
	".htm":      FileTypeHTML,
	".pdf":      FileTypePDF,
	".png":      FileTypePNG,
	".jpg":      FileTypeJPEG,
	".jpeg":     FileTypeJPEG,
	".gif":      FileTypeGIF,
	".webp":     FileTypeWebP,
	".svg":      FileTypeSVG,
}

// IsImage reports whether t can be embedded in a quiz.
func (t FileType) IsImage() bool {
	switch t {
	case FileTypePNG, FileTypeJPEG, FileTypeGIF, FileTypeWebP, FileTypeSVG:
		return true
	}
	return false
}

// textual types have no signature and are recognised by content alone.
func (t FileType) textual() bool {
	return t == FileTypeText || t == FileTypeHTML || t == FileTypeSVG
}

// DetectFileType sniffs data without a file name. Anything that is not a
// known binary format but reads as text is FileTypeText.
func DetectFileType(data []byte) FileType {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	if t := fromMagic(data); t != FileTypeUnknown {
		return t
	}
	if isLikelyText(data) {
		return FileTypeText
	}
	return FileTypeUnknown
}

// ValidateFileType sniffs the start of r and checks it against the type
// the extension of filename promises. A file whose extension is unknown
// takes the sniffed type.
func ValidateFileType(r io.Reader, filename string) (FileType, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	sniffed := fromMagic(buf)
	claimed := fromExtension(filename)
	switch {
	case sniffed == claimed:
		return sniffed, nil
	case claimed == FileTypeUnknown:
		return sniffed, nil
	case sniffed == FileTypeUnknown && claimed.textual():
		if isLikelyText(buf) {
			return claimed, nil
		}
		return FileTypeUnknown, fmt.Errorf("%s is named as %s but its content is binary", filepath.Base(filename), claimed)
	case sniffed == FileTypeUnknown:
		// Truncated or unusual variants of a binary format; the decoder
		// that reads the file reports the real problem.
		return claimed, nil
	}
	return FileTypeUnknown, fmt.Errorf("%s is named as %s but its content is %s", filepath.Base(filename), claimed, sniffed)
}

func fromMagic(buf []byte) FileType {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if end <= len(buf) && bytes.Equal(buf[sig.offset:end], sig.magic) {
			return sig.fileType
		}
	}
	return FileTypeUnknown
}

func fromExtension(filename string) FileType {
	if t, ok := extensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	return FileTypeUnknown
}

// isLikelyText accepts UTF-8 without NUL in which at most one rune in
// twenty is a control character. A rune cut off by the sniff window is
// ignored.
func isLikelyText(buf []byte) bool {
	runes, control := 0, 0
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(buf) {
				break
			}
			return false
		}
		buf = buf[size:]
		runes++
		switch {
		case r == 0:
			return false
		case r == '\t' || r == '\n' || r == '\r' || r == '\f':
		case unicode.IsControl(r):
			control++
		}
	}
	return runes > 0 && control*20 < runes
}
