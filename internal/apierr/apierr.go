package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-checkable error codes surfaced in the HTTP envelope.
const (
	CodeAuth        = "auth_error"
	CodeNotFound    = "not_found"
	CodeBadInput    = "bad_input"
	CodeExtraction  = "extraction_error"
	CodeParse       = "parse_error"
	CodePersistence = "persistence_error"
	CodeValidation  = "validation_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf("%s not found", what))
}

func BadInput(err error) *Error {
	return New(http.StatusBadRequest, CodeBadInput, err)
}

func Forbidden(err error) *Error {
	return New(http.StatusForbidden, CodeAuth, err)
}

func Persistence(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistence, err)
}

// Validation marks user-visible, non-fatal workflow failures (unvalidated
// lines, blocking VAT checks).
func Validation(err error) *Error {
	return New(http.StatusUnprocessableEntity, CodeValidation, err)
}

// Extraction marks provider failures during document extraction.
func Extraction(err error) *Error {
	return New(http.StatusBadGateway, CodeExtraction, err)
}

// Parse marks a provider payload that could not be read as the canonical
// shape. Counts as an extraction failure for document state.
func Parse(err error) *Error {
	return New(http.StatusBadGateway, CodeParse, err)
}

// StatusOf resolves the HTTP status for any error, defaulting to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// CodeOf resolves the machine code for any error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return "internal_error"
}
