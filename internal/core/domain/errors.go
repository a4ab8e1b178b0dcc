package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRunNotFound     = errors.New("run not found")
	ErrArticleNotFound = errors.New("article not found in run")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")
	ErrSchemaInvalid   = errors.New("response schema invalid")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
