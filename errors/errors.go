package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotFound        = fmt.Errorf("not found")
	ErrTransientStore  = fmt.Errorf("store temporarily unavailable")
	ErrConflict        = fmt.Errorf("conflicting concurrent update")
	ErrPartialSaga     = fmt.Errorf("saga stopped before completion")
)

// Is and As forward to the standard library so callers can match the
// sentinels above without importing two errors packages.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

