package session

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/kata/internal/runner"
)

var (
	ErrNoActiveDocument = errors.New("no active document")
	ErrPrecondition     = errors.New("action not available")
	ErrAlreadyRevealed  = errors.New("already revealed")
	ErrBlockNotFound    = errors.New("block not found")
	ErrGeneration       = errors.New("generation failed")
	ErrRunFailed        = errors.New("run failed")
	ErrCancelled        = errors.New("cancelled")
	ErrUnknownAction    = errors.New("unknown action")

	ErrUnsupportedLanguage = runner.ErrUnsupportedLanguage
)

var errNoGenerator = fmt.Errorf("%w: no generator configured", ErrPrecondition)
