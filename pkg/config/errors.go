package config

import "errors"

// ErrInvalidConfig indicates one or more required config fields are
// missing or malformed
var ErrInvalidConfig = errors.New("invalid release config")
