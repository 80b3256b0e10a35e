package storage

import "errors"

// ErrDuplicateEmail is returned when creating a user whose email is already
// registered. Postgres surfaces this from the unique index; the memory store
// checks explicitly.
var ErrDuplicateEmail = errors.New("email already registered")
