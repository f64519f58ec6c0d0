package storage

import "errors"

var ErrNotFound = errors.New("storage: not found")

var ErrBlobTooLarge = errors.New("storage: blob too large")
