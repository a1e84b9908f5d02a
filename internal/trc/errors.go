package trc

import (
	"errors"
	"fmt"

	"canlogconvert/internal/trace"
)

// ErrParse matches every error returned by Load through errors.Is. Use
// errors.As with the concrete types below to tell the kinds apart.
var ErrParse = errors.New("trc: parse error")

// UnsupportedVersionError is returned for any file version other than 2.1.
// The body is never looked at.
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported TRC file version %s (only %s is supported)", e.Version, SupportedVersion)
}

func (e *UnsupportedVersionError) Is(target error) bool { return target == ErrParse }

// HeaderParseError reports a missing, misplaced or malformed directive.
type HeaderParseError struct {
	Directive string // FILEVERSION, STARTTIME or COLUMNS
	Line      int
	Text      string
	Reason    string
}

func (e *HeaderParseError) Error() string {
	return fmt.Sprintf("line %d: invalid $%s directive %q: %s", e.Line, e.Directive, e.Text, e.Reason)
}

func (e *HeaderParseError) Is(target error) bool { return target == ErrParse }

// BodyParseError reports a body line that is neither a comment nor a
// well-formed data line.
type BodyParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *BodyParseError) Error() string {
	return fmt.Sprintf("line %d: cannot parse %q: %s", e.Line, e.Text, e.Reason)
}

func (e *BodyParseError) Is(target error) bool { return target == ErrParse }

// MessageBodyMismatchError reports a data field whose byte count does not
// fit the message type or the declared length.
type MessageBodyMismatchError struct {
	Line     int
	Type     trace.MessageType
	Expected int
	Actual   int
}

func (e *MessageBodyMismatchError) Error() string {
	msg := fmt.Sprintf("%s message expects %d data bytes, found %d", e.Type.Code(), e.Expected, e.Actual)
	if e.Line == 0 {
		return msg
	}
	return fmt.Sprintf("line %d: %s", e.Line, msg)
}

func (e *MessageBodyMismatchError) Is(target error) bool { return target == ErrParse }

// UnknownDirectionError reports a direction token other than Rx or Tx.
type UnknownDirectionError struct {
	Line  int
	Token string
}

func (e *UnknownDirectionError) Error() string {
	return fmt.Sprintf("line %d: unknown direction %q (expected Rx or Tx)", e.Line, e.Token)
}

func (e *UnknownDirectionError) Is(target error) bool { return target == ErrParse }
