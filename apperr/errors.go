// Package apperr defines the single error type surfaced by the inference and
// training flows. Every error carries the original cause, a Kind used for
// classification at the boundary, the operation that failed and the source
// location where it was wrapped.
package apperr

import (
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind uint8

const (
	Unknown Kind = iota
	// ArtifactLoad: a persisted preprocessor or model is missing or undecodable.
	ArtifactLoad
	// SchemaMismatch: a table does not carry the columns (or value types) a fitted
	// preprocessor expects.
	SchemaMismatch
	// Parse: a caller-supplied value could not be converted.
	Parse
	// InvalidData: data is structurally fine but numerically unusable.
	InvalidData
	// Training: the training job could not produce an acceptable model.
	Training
)

func (k Kind) String() string {
	switch k {
	case ArtifactLoad:
		return "artifact load error"
	case SchemaMismatch:
		return "schema mismatch"
	case Parse:
		return "parse error"
	case InvalidData:
		return "invalid data"
	case Training:
		return "training error"
	default:
		return "unknown error"
	}
}

// Error is the uniform wrapped error.
type Error struct {
	Kind Kind
	Op   string
	File string
	Line int
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.File != "" {
		fmt.Fprintf(&b, " [%s:%d]", e.File, e.Line)
	}
	if e.Kind != Unknown {
		b.WriteString(": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Cause satisfies the github.com/pkg/errors causer interface.
func (e *Error) Cause() error { return e.Err }

// Location returns "dir/file.go:line" of the wrap site.
func (e *Error) Location() string {
	return fmt.Sprintf("%s:%d", e.File, e.Line)
}

// Format prints the stack trace of the cause with %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s\n%+v", e.Error(), e.Err)
			return
		}
		io.WriteString(s, e.Error())
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// E wraps err with kind, op and the caller's location. A nil err yields nil.
// When kind is Unknown and err already is an *Error, the inner kind is kept.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return wrap(2, kind, op, err)
}

// Errorf builds a new cause from the format and wraps it like E.
func Errorf(kind Kind, op string, format string, args ...interface{}) error {
	return wrap(2, kind, op, errors.Errorf(format, args...))
}

func wrap(skip int, kind Kind, op string, err error) error {
	var inner *Error
	if stderrors.As(err, &inner) {
		if kind == Unknown {
			kind = inner.Kind
		}
	} else {
		var st stackTracer
		if !stderrors.As(err, &st) {
			err = errors.WithStack(err)
		}
	}

	e := &Error{Kind: kind, Op: op, Err: err}
	if _, file, line, ok := runtime.Caller(skip); ok {
		e.File = filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file))
		e.Line = line
	}
	return e
}

// KindOf reports the first non-Unknown kind found in err's chain.
func KindOf(err error) Kind {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return Unknown
		}
		if e.Kind != Unknown {
			return e.Kind
		}
		err = e.Err
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
