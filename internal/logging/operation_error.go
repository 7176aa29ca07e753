package logging

import (
	"errors"
	"strings"
)

// Operation names a step of the pick/crop/analyze flow.
type Operation string

const (
	OpPick     Operation = "session.pick"
	OpCrop     Operation = "session.crop"
	OpAnalyze  Operation = "session.analyze"
	OpDescribe Operation = "session.describe"
	OpCLI      Operation = "cli"
)

// OperationError reports which session step failed and on which image.
type OperationError struct {
	Op        Operation
	SessionID string
	Image     string
	Err       error
}

// Error renders "<op> failed[ for <image>][ (session <id>)]: <cause>".
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Op))
	b.WriteString(" failed")
	if e.Image != "" {
		b.WriteString(" for ")
		b.WriteString(e.Image)
	}
	if e.SessionID != "" {
		b.WriteString(" (session ")
		b.WriteString(e.SessionID)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError tags err with the failing step, session and image reference.
func NewOperationError(op Operation, sessionID, image string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, SessionID: sessionID, Image: image, Err: err}
}

// OperationOf returns the step at which err occurred, if it was tagged with one.
func OperationOf(err error) (Operation, bool) {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Op, true
	}
	return "", false
}
