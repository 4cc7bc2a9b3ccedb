package lucene

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax          = errors.New("syntax error")
	ErrInvalidArgument = errors.New("invalid argument")
)

// SyntaxError describes why a query could not be parsed.
type SyntaxError struct {
	Query string // the parsed input
	Pos   int    // byte offset of the offending token
	Near  string // the offending substring
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("syntax error at %d near %q: %s", e.Pos, e.Near, e.Msg)
}

// Is makes errors.Is(err, ErrSyntax) hold for every *SyntaxError.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// AsSyntaxError finds a *SyntaxError in err's chain.
func AsSyntaxError(err error) (*SyntaxError, bool) {
	var serr *SyntaxError
	ok := errors.As(err, &serr)
	return serr, ok
}

func invalidArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
