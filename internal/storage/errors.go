package storage

import "errors"

// ErrAssignmentNotFound indicates the referenced assignment record does not
// exist in the store.
var ErrAssignmentNotFound = errors.New("storage: assignment record not found")
