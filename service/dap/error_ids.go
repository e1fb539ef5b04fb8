package dap

import (
	"fmt"

	"github.com/google/go-dap"
)

// Unique identifiers for messages returned for errors from requests.
// These values are not mandated by DAP (other than the uniqueness
// requirement), so each implementation is free to choose their own.
const (
	// Where applicable and for consistency only,
	// values below are inspired the original vscode-go debug adaptor.
	UnableToListLocals     = 2005
	UnableToLookupVariable = 2008
	UnableToStep           = 2010
)

// Error is an error reported to a DAP client.
type Error struct {
	ID      int
	Summary string
	Details string
}

func newError(id int, summary, details string) *Error {
	return &Error{ID: id, Summary: summary, Details: details}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Summary, e.Details)
}

// Message returns the error in the form sent in error responses.
func (e *Error) Message() dap.ErrorMessage {
	return dap.ErrorMessage{
		Id:       e.ID,
		Format:   e.Error(),
		ShowUser: true,
	}
}
