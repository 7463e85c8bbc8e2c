package storage

import "errors"

// ErrProductNotFound is returned by write operations referencing a
// product id that does not exist.
var ErrProductNotFound = errors.New("product not found")
