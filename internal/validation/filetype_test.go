package validation

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

func TestValidateFileType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		want     FileType
		wantErr  string
	}{
		{"quiz text", "quiz.md", []byte("Quiz title: Week 1\n\n1. What?\n*a) this\nb) that\n"), FileTypeText, ""},
		{"plain text extension", "quiz.txt", []byte("1. Q\n*a) x\nb) y\n"), FileTypeText, ""},
		{"package", "quiz.zip", []byte("PK\x03\x04\x14\x00"), FileTypeZip, ""},
		{"common cartridge", "course.IMSCC", []byte("PK\x03\x04"), FileTypeZip, ""},
		{"png", "plot.png", pngHeader, FileTypePNG, ""},
		{"jpeg upper-case extension", "photo.JPG", []byte{0xff, 0xd8, 0xff, 0xe0}, FileTypeJPEG, ""},
		{"gif", "anim.gif", []byte("GIF89a"), FileTypeGIF, ""},
		{"webp", "pic.webp", []byte("RIFF\x24\x00\x00\x00WEBPVP8 "), FileTypeWebP, ""},
		{"svg", "diagram.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`), FileTypeSVG, ""},
		{"pdf", "key.pdf", []byte("%PDF-1.7\n"), FileTypePDF, ""},
		{"zip named as text", "quiz.md", []byte("PK\x03\x04"), FileTypeUnknown, "quiz.md is named as text but its content is zip"},
		{"png named as zip", "quiz.zip", pngHeader, FileTypeUnknown, "content is png"},
		{"binary named as text", "quiz.txt", []byte{0x01, 0x02, 0x00, 0x03}, FileTypeUnknown, "content is binary"},
		{"unknown extension takes the sniffed type", "quiz.bin", []byte("PK\x03\x04"), FileTypeZip, ""},
		{"unknown extension and content", "quiz.bin", []byte{0x01, 0x02}, FileTypeUnknown, ""},
		{"text named as png", "plot.png", []byte("not an image"), FileTypePNG, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFileType(bytes.NewReader(tt.content), tt.filename)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ValidateFileType() error = %v, want %q", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("ValidateFileType() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateFileType() = %v, want %v", got, tt.want)
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, fmt.Errorf("disk on fire") }

func TestValidateFileTypeReadError(t *testing.T) {
	_, err := ValidateFileType(failingReader{}, "quiz.md")
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("ValidateFileType() error = %v", err)
	}
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    FileType
	}{
		{"quiz text", []byte("1.  What is 2+3?\na)  6\n*b) 5\n"), FileTypeText},
		{"zip", []byte("PK\x03\x04\x00\x00"), FileTypeZip},
		{"empty zip", []byte("PK\x05\x06"), FileTypeZip},
		{"png", pngHeader, FileTypePNG},
		{"binary", []byte{0x00, 0x01, 0x02}, FileTypeUnknown},
		{"empty", nil, FileTypeUnknown},
		{"long text", []byte(strings.Repeat("1. Q?\n*a) x\nb) y\n\n", 100)), FileTypeText},
		{"multi-byte rune across the window", []byte(strings.Repeat("a", sniffLen-1) + "é"), FileTypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFileType(tt.content); got != tt.want {
				t.Errorf("DetectFileType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsImage(t *testing.T) {
	for _, ft := range []FileType{FileTypePNG, FileTypeJPEG, FileTypeGIF, FileTypeWebP, FileTypeSVG} {
		if !ft.IsImage() {
			t.Errorf("%s.IsImage() = false", ft)
		}
	}
	for _, ft := range []FileType{FileTypeZip, FileTypeText, FileTypeHTML, FileTypePDF, FileTypeUnknown} {
		if ft.IsImage() {
			t.Errorf("%s.IsImage() = true", ft)
		}
	}
}

func TestFromExtension(t *testing.T) {
	tests := map[string]FileType{
		"quiz.md":       FileTypeText,
		"quiz.MARKDOWN": FileTypeText,
		"quiz.quiz":     FileTypeText,
		"export.zip":    FileTypeZip,
		"key.htm":       FileTypeHTML,
		"a.jpeg":        FileTypeJPEG,
		"noext":         FileTypeUnknown,
		"archive.tar":   FileTypeUnknown,
	}
	for name, want := range tests {
		if got := fromExtension(name); got != want {
			t.Errorf("fromExtension(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsLikelyText(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"ascii", []byte("hello world\n"), true},
		{"utf-8", []byte("Température: 20 °C\n"), true},
		{"form feed and tabs", []byte("a\tb\fc\r\n"), true},
		{"empty", nil, false},
		{"null byte", []byte("abc\x00def"), false},
		{"control heavy", []byte{0x01, 0x02, 0x03, 'a'}, false},
		{"latin-1", []byte("caf\xe9 au lait"), false},
		{"truncated final rune", []byte("caf\xc3"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isLikelyText(tt.buf); got != tt.want {
				t.Errorf("isLikelyText(%q) = %v, want %v", tt.buf, got, tt.want)
			}
		})
	}
}
