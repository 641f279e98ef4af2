package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSyntaxError(t *testing.T) {
	tests := []struct {
		name    string
		err     *SyntaxError
		wantMsg string
	}{
		{
			name:    "with line",
			err:     &SyntaxError{Source: `"quiz.txt"`, Line: 4, Message: `Missing whitespace after "1."`},
			wantMsg: "In \"quiz.txt\" on line 4:\nMissing whitespace after \"1.\"",
		},
		{
			name:    "with expected construct",
			err:     &SyntaxError{Line: 9, Expected: `"END_GROUP"`, Message: "Question group never ended"},
			wantMsg: "In <string> on line 9:\nQuestion group never ended (expected \"END_GROUP\")",
		},
		{
			name:    "without line",
			err:     &SyntaxError{Source: `"a.txt"`, Message: "No questions were found"},
			wantMsg: "In \"a.txt\":\nNo questions were found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrSyntax) {
				t.Error("errors.Is(err, ErrSyntax) = false")
			}
		})
	}
}

func TestSemanticError(t *testing.T) {
	tests := []struct {
		name    string
		lines   []int
		wantMsg string
	}{
		{"single line", []int{3}, "In <string> on line 3:\nDuplicate question"},
		{"two lines", []int{1, 7}, "In <string> on lines 1 and 7:\nDuplicate question"},
		{"three lines", []int{1, 4, 7}, "In <string> on lines 1, 4 and 7:\nDuplicate question"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSemantic("", "Duplicate question", tt.lines...)
			if got := err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(err, ErrSemantic) {
				t.Error("errors.Is(err, ErrSemantic) = false")
			}
		})
	}
}

func TestCollaboratorError(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := NewCollaborator(`"q.txt"`, 12, "code block", cause)

	want := "In \"q.txt\" on line 12:\ncode block failed: exit status 1"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrCollaborator) {
		t.Error("errors.Is(err, ErrCollaborator) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
}

func TestLine(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"syntax", NewSyntax("", 5, "x"), 5},
		{"semantic", NewSemantic("", "x", 2, 9), 2},
		{"collaborator", NewCollaborator("", 8, "pandoc", errors.New("boom")), 8},
		{"wrapped", Wrap(NewSyntax("", 3, "x"), "convert"), 3},
		{"plain", errors.New("plain"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Line(tt.err); got != tt.want {
				t.Errorf("Line() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "cache entry", ID: "abc"},
			wantMsg:  "cache entry not found: abc",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "config file"},
			wantMsg:  "config file not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidation("seed", "must be an integer")
	if got, want := err.Error(), "validation failed for seed: must be an integer"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is(err, ErrInvalidInput) = false")
	}
}

func TestIOError(t *testing.T) {
	underlying := fmt.Errorf("permission denied")
	err := NewIO("write", "/tmp/out.zip", underlying)
	if got, want := err.Error(), "failed to write /tmp/out.zip: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Unwrap() != underlying {
		t.Error("Unwrap() did not return underlying error")
	}
}

func TestParseAndUnsupported(t *testing.T) {
	p := NewParse("manifest", "imsmanifest.xml", "missing resource")
	if got, want := p.Error(), "failed to parse manifest at imsmanifest.xml: missing resource"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(p, ErrInvalidInput) {
		t.Error("ParseError should unwrap to ErrInvalidInput")
	}

	u := NewUnsupported("cache driver", "mysql")
	if got, want := u.Error(), "unsupported cache driver: mysql"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(u, ErrUnsupported) {
		t.Error("UnsupportedError should unwrap to ErrUnsupported")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
	base := errors.New("base")
	err := Wrapf(base, "step %d", 2)
	if err.Error() != "step 2: base" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !Is(err, base) {
		t.Error("Is() should find base error")
	}
	var ve *ValidationError
	if As(err, &ve) {
		t.Error("As() should not match ValidationError")
	}
}
