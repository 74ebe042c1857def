package database

import "errors"

// ErrNotFound is returned when a facility lookup matches no row
var ErrNotFound = errors.New("facility not found")
