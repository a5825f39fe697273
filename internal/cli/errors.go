package cli

import (
	"fmt"
	"os"

	"github.com/akorkmaz/civita/internal/apperr"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitNotFound     = 3
	ExitDenied       = 4
	ExitInternal     = 5
	ExitConflict     = 6
)

// Run executes the CLI and exits with the code mapped from the error kind.
func Run() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperr.GetCLIExitCode(err))
	}
}
