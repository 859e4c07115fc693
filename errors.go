package tickdb

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/flashtick/tickdb/errkind"
)

// Kind classifies an engine error: every failure surfaced to a caller
// falls into exactly one of these buckets. It is an alias of errkind.Kind
// so that schema, a package tickdb imports and which therefore cannot
// import tickdb back, can produce errors classified the same way.
type Kind = errkind.Kind

const (
	KindUnknown         = errkind.Unknown
	KindIO              = errkind.IO
	KindInvalidArgument = errkind.InvalidArgument
	KindNotFound        = errkind.NotFound
	KindExhausted       = errkind.Exhausted
	KindCorrupt         = errkind.Corrupt
)

// Error is the engine's single error type, an alias of errkind.Error so
// that schema's errors and tickdb's errors share one concrete type.
type Error = errkind.Error

func newErr(kind Kind, path string, err error) *Error {
	return errkind.New(kind, path, err)
}

// ioErr wraps a system-call failure (open/mmap/ftruncate/msync/mkdir/write/
// read) with the offending path.
func ioErr(path string, err error) error {
	if err == nil {
		return nil
	}
	return newErr(KindIO, path, pkgerrors.Wrapf(err, "io error at %s", path))
}

func invalidArgf(format string, args ...interface{}) error {
	return newErr(KindInvalidArgument, "", fmt.Errorf(format, args...))
}

func notFoundf(format string, args ...interface{}) error {
	return newErr(KindNotFound, "", fmt.Errorf(format, args...))
}

func exhaustedf(format string, args ...interface{}) error {
	return newErr(KindExhausted, "", fmt.Errorf(format, args...))
}

func corruptf(path string, format string, args ...interface{}) error {
	return newErr(KindCorrupt, path, fmt.Errorf(format, args...))
}

// Is reports whether err is an engine *Error of the given Kind. schema.Init
// and schema.Add construct *errkind.Error directly (the same concrete type
// as *Error, since Error is an alias), so this also classifies failures
// returned straight from the schema package.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
