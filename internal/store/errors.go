package store

import "errors"

// ErrNotFound is returned by lookups that find no matching row. Per spec.md
// §7 this is not an error for delete (callers translate it to a false
// success flag) but is surfaced for mutate operations that require an
// existing record.
var ErrNotFound = errors.New("not found")

// ErrConflict is the sentinel for a unique-constraint violation; no method in
// this package currently returns it.
var ErrConflict = errors.New("conflict")
