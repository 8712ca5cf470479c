package connectiondao

import (
	"errors"
	"fmt"
)

// StorageError indicates the registry backend could not be reached or
// rejected the operation.
type StorageError struct {
	Op           string
	ConnectionID string
	Err          error
}

func (e *StorageError) Error() string {
	if e.ConnectionID == "" {
		return fmt.Sprintf("registry %v failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("registry %v failed for connection %v: %v", e.Op, e.ConnectionID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
