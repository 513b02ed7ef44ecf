package core

import (
	"errors"
	"fmt"

	"github.com/sqlcollection/sqlcollection/core/internal/dialect"
	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

var (
	ErrUnknownTable    = sdata.ErrUnknownTable
	ErrUnknownColumn   = sdata.ErrUnknownColumn
	ErrAmbiguousLookup = sdata.ErrAmbiguousLookup
	ErrWrongParameter  = qcode.ErrWrongParameter
	ErrMissingField    = qcode.ErrMissingField
	ErrBadRequest      = qcode.ErrBadRequest

	// ErrIntegrityViolation wraps constraint failures reported by the store.
	ErrIntegrityViolation = errors.New("integrity violation")
)

func storeError(d dialect.Dialect, err error) error {
	if err == nil {
		return nil
	}
	if d.IsIntegrityViolation(err) {
		return fmt.Errorf("%w: %v", ErrIntegrityViolation, err)
	}
	return err
}
