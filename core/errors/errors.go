// Package errors provides the diagnostic types shared by the quiz compiler,
// its collaborators and the command/server surfaces.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized indicates missing or rejected credentials
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrSyntax indicates malformed quiz text
	ErrSyntax = errors.New("syntax error")
	// ErrSemantic indicates well-formed quiz text that violates a quiz rule
	ErrSemantic = errors.New("semantic error")
	// ErrCollaborator indicates a failure in a renderer, preprocessor or
	// external process
	ErrCollaborator = errors.New("collaborator error")
)

// location renders the "In <source> on line N" prefix used by every quiz
// diagnostic.
func location(source string, lines []int) string {
	if source == "" {
		source = "<string>"
	}
	var valid []string
	for _, n := range lines {
		if n > 0 {
			valid = append(valid, fmt.Sprint(n))
		}
	}
	switch len(valid) {
	case 0:
		return fmt.Sprintf("In %s", source)
	case 1:
		return fmt.Sprintf("In %s on line %s", source, valid[0])
	default:
		return fmt.Sprintf("In %s on lines %s and %s", source,
			strings.Join(valid[:len(valid)-1], ", "), valid[len(valid)-1])
	}
}

// SyntaxError reports malformed markers, bad indentation or unterminated
// constructs.
type SyntaxError struct {
	Source   string // Display name of the document (quoted path or "<string>")
	Line     int    // 1-based source line, 0 when unknown
	Expected string // Construct the parser expected at this point, if known
	Message  string // Human-readable error message
}

func (e *SyntaxError) Error() string {
	msg := e.Message
	if e.Expected != "" {
		msg = fmt.Sprintf("%s (expected %s)", msg, e.Expected)
	}
	return fmt.Sprintf("%s:\n%s", location(e.Source, []int{e.Line}), msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// SemanticError reports a rule violation discovered once an element was
// fully parsed. Lines lists every source line the message refers to.
type SemanticError struct {
	Source  string
	Lines   []int
	Message string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("%s:\n%s", location(e.Source, e.Lines), e.Message)
}

func (e *SemanticError) Unwrap() error {
	return ErrSemantic
}

// CollaboratorError wraps a failure raised by the renderer, a preprocessor or
// an executed code block, attaching the source line that triggered it.
type CollaboratorError struct {
	Source       string
	Line         int
	Collaborator string // e.g. "markdown", "pandoc", "code block"
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s:\n%s failed: %v", location(e.Source, []int{e.Line}), e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaborator, e.Err}
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "cache entry", "config file")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a failure to read back a generated document such as
// an archive manifest or assessment XML.
type ParseError struct {
	Format  string // Format being parsed (e.g., "manifest", "assessment")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewSyntax creates a SyntaxError
func NewSyntax(source string, line int, message string) *SyntaxError {
	return &SyntaxError{
		Source:  source,
		Line:    line,
		Message: message,
	}
}

// NewSemantic creates a SemanticError referring to one or more lines
func NewSemantic(source, message string, lines ...int) *SemanticError {
	return &SemanticError{
		Source:  source,
		Lines:   lines,
		Message: message,
	}
}

// NewCollaborator creates a CollaboratorError
func NewCollaborator(source string, line int, collaborator string, err error) *CollaboratorError {
	return &CollaboratorError{
		Source:       source,
		Line:         line,
		Collaborator: collaborator,
		Err:          err,
	}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Line extracts the primary source line from a quiz diagnostic, or 0.
func Line(err error) int {
	var syn *SyntaxError
	if errors.As(err, &syn) {
		return syn.Line
	}
	var sem *SemanticError
	if errors.As(err, &sem) && len(sem.Lines) > 0 {
		return sem.Lines[0]
	}
	var col *CollaboratorError
	if errors.As(err, &col) {
		return col.Line
	}
	return 0
}
