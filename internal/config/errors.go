package config

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// Errors returned by configuration operations.
var (
	// ErrInvalidValue indicates a setting holds a value of the wrong type or
	// outside its allowed set. The default is used instead.
	ErrInvalidValue = errors.New("invalid setting value")

	// ErrInvalidPath indicates an invalid setting path format.
	ErrInvalidPath = errors.New("invalid setting path")
)

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Line is the line number where the error occurred (if available).
	Line int
	// Column is the column number where the error occurred (if available).
	Column int
	// Err is the underlying error.
	Err error
}

func newParseError(path string, err error) *ParseError {
	pe := &ParseError{Path: path, Err: err}
	var de *toml.DecodeError
	if errors.As(err, &de) {
		pe.Line, pe.Column = de.Position()
	}
	return pe
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Problem records a setting that could not be applied.
type Problem struct {
	// Path is the dotted setting path, or the file for parse errors.
	Path string
	// Source names the layer the bad value came from.
	Source string
	// Err describes what was wrong.
	Err error
}

func (p Problem) String() string {
	return fmt.Sprintf("%s (%s): %v", p.Path, p.Source, p.Err)
}
