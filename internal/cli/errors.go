package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/vem-project/vem/pkg/color"
	"github.com/vem-project/vem/pkg/errclass"
)

// Exit statuses.
const (
	ExitOK                = 0
	ExitGeneral           = 1
	ExitInvalidName       = 2
	ExitNotFound          = 3
	ExitAlreadyExists     = 4
	ExitActiveEnvironment = 5
	ExitNoCurrent         = 6
	ExitStorage           = 7
	ExitCodec             = 8
	ExitConfig            = 9

	// ExitUsage reports bad flags, arguments or subcommands (sysexits EX_USAGE).
	ExitUsage = 64
)

var exitCodes = map[string]int{
	errclass.ErrNameInvalid.Code:       ExitInvalidName,
	errclass.ErrNotFound.Code:          ExitNotFound,
	errclass.ErrAlreadyExists.Code:     ExitAlreadyExists,
	errclass.ErrActiveEnvironment.Code: ExitActiveEnvironment,
	errclass.ErrNoCurrent.Code:         ExitNoCurrent,
	errclass.ErrStorage.Code:           ExitStorage,
	errclass.ErrPathEscape.Code:        ExitStorage,
	errclass.ErrCodec.Code:             ExitCodec,
	errclass.ErrConfigInvalid.Code:     ExitConfig,
}

// ExitError signals a non-zero exit code without forcing os.Exit in RunE
// handlers. Hint, when set, is printed below the error line.
type ExitError struct {
	Code int
	Err  error
	Hint string
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

func withHint(err error, hint string) error {
	if hint == "" {
		return err
	}
	return &ExitError{Code: exitCode(err), Err: err, Hint: hint}
}

// storageError passes classified errors through and classifies anything
// else as a storage failure carrying msg.
func storageError(err error, msg string) error {
	if errclass.Classify(err) != nil {
		return err
	}
	return errclass.Storage(err, "%s", msg)
}

func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if e := errclass.Classify(err); e != nil {
		if code, ok := exitCodes[e.Code]; ok {
			return code
		}
	}
	return ExitGeneral
}

// printError writes "vem: <message>" and, with --verbose, the underlying
// cause. Classified errors print their human message only.
func printError(w io.Writer, err error) {
	msg := err.Error()
	var detail string
	if e := errclass.Classify(err); e != nil {
		if e.Message != "" {
			msg = e.Message
		}
		detail = e.Detail()
	}

	fmtErr(w, "%s", msg)
	if verbose && detail != "" {
		fmt.Fprintf(w, "  detail: %s\n", detail)
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Hint != "" {
		fmt.Fprintln(w, color.Dim("  "+exitErr.Hint))
	}
}
