package blade

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for malformed engine input: slot content of
	// an unsupported type, an explicit nil where content was expected, or an
	// invalid configuration value.
	ErrConfiguration = errors.New("configuration error")
	// ErrTemplateSyntax is matched by every directive error, whether it is
	// found while loading templates or while resolving slots at render time.
	ErrTemplateSyntax = errors.New("template syntax error")
	// ErrTemplateNotFound is returned when a page or component template is not loaded.
	ErrTemplateNotFound = errors.New("template not found")
)

// MissingRequiredSlotError is returned when a slot marked required is
// rendered without a fill.
type MissingRequiredSlotError struct {
	Slot      string
	Component string
}

func (e *MissingRequiredSlotError) Error() string {
	return fmt.Sprintf("Slot '%s' is marked as 'required' (i.e. non-optional), yet no fill is provided.", e.Slot)
}

func (e *MissingRequiredSlotError) Unwrap() error {
	return ErrTemplateSyntax
}

// ConflictingFillSourceError is returned when a fill gets its content both
// from a body= argument and from the markup between @fill and @endfill.
type ConflictingFillSourceError struct {
	Fill string
}

func (e *ConflictingFillSourceError) Error() string {
	return fmt.Sprintf("Fill '%s' received content both through 'body' kwarg and fill body.", e.Fill)
}

func (e *ConflictingFillSourceError) Unwrap() error {
	return ErrTemplateSyntax
}

// SyntaxError reports a malformed directive in a template file.
type SyntaxError struct {
	File string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("[%s] %s", e.File, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrTemplateSyntax
}

func syntaxErrorf(file string, format string, args ...any) error {
	return &SyntaxError{File: file, Msg: fmt.Sprintf(format, args...)}
}
