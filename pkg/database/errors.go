package database

import "errors"

// ErrNoPool indicates a native connection pool was requested from a driver without one.
var ErrNoPool = errors.New("database driver has no native pool")
