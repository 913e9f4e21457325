package storage

import "errors"

// ErrEmailTaken reports a uniqueness violation on the user email column.
var ErrEmailTaken = errors.New("email already registered")
