package main

import (
	"errors"
	"fmt"
	"io"

	"chainstate/pkg/chainerr"
)

// errorHandler prints user-facing messages for coded errors.
type errorHandler struct {
	out     io.Writer
	verbose bool
}

func newErrorHandler(out io.Writer, verbose bool) *errorHandler {
	return &errorHandler{out: out, verbose: verbose}
}

func (h *errorHandler) Handle(err error) error {
	var ce *chainerr.Error
	hasDetails := errors.As(err, &ce)

	switch chainerr.GetCode(err) {
	case chainerr.CodeNotFound:
		fmt.Fprintf(h.out, "Not found: %v\n", err)
		fmt.Fprintf(h.out, "Run 'chainstate snapshots list' to see stored chains.\n")
	case chainerr.CodeInvalidInput:
		fmt.Fprintf(h.out, "Invalid input: %v\n", err)
		fmt.Fprintf(h.out, "Check the configuration file and CHAINSTATE_* environment variables.\n")
	case chainerr.CodePersistence:
		fmt.Fprintf(h.out, "Storage error: %v\n", err)
		if hasDetails {
			fmt.Fprintf(h.out, "Blob key: %v\n", ce.Details["key"])
		}
	default:
		fmt.Fprintf(h.out, "Error: %v\n", err)
	}
	if h.verbose && hasDetails {
		fmt.Fprintf(h.out, "\nError details:\n%s\n", ce.ToJSON())
	}
	return err
}
