package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/linkwatch/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err based on its code and returns err unchanged
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	lwErr, _ := errors.As(err)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "❌ Configuration not found. Create linkwatch.yml or pass --config.\n")
		fmt.Fprintf(h.Out, "Run 'linkwatch config schema' to see the expected format.\n")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "❌ %s\n", lwErr.Message)
		if path, ok := lwErr.Details["path"]; ok {
			fmt.Fprintf(h.Out, "Fix %v and run 'linkwatch config validate'.\n", path)
		}

	case errors.ErrCodeSymlinkUnresolved:
		fmt.Fprintf(h.Out, "❌ Symlink %v could not be resolved\n", lwErr.Details["link"])
		fmt.Fprintf(h.Out, "Check it for cycles or an empty target.\n")

	case errors.ErrCodeWatchBindFailed:
		fmt.Fprintf(h.Out, "❌ Cannot watch %v\n", lwErr.Details["path"])
		fmt.Fprintf(h.Out, "On Linux, raise fs.inotify.max_user_watches if many directories are linked.\n")

	case errors.ErrCodeProjectNotFound:
		fmt.Fprintf(h.Out, "❌ Project '%v' not found in linkwatch.yml\n", lwErr.Details["ident"])

	case errors.ErrCodeAlreadyRunning:
		fmt.Fprintf(h.Out, "❌ %s\n", lwErr.Message)
		fmt.Fprintf(h.Out, "Stop it first, or remove %v if that process is not linkwatch.\n", lwErr.Details["path"])

	default:
		fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
	}

	if h.Verbose && lwErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", lwErr.ToJSON())
	}
	return err
}
