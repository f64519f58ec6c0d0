package cache

import "errors"

// ErrNotFound is returned when a URL is absent from every tier,
// including the backing storage.Backend.
var ErrNotFound = errors.New("cache: schema not found")
