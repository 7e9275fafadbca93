package storage

import "errors"

// ErrUnavailable marks a backing-store read/write failure. Callers must fail
// loudly on it: proceeding as if no history or queue existed would either
// enable abuse or silently drop an alert.
var ErrUnavailable = errors.New("storage unavailable")
