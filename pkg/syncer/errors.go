package syncer

import "errors"

// ErrInvalidVersion indicates Sync or Verify was called without a parsed
// target version
var ErrInvalidVersion = errors.New("invalid target version")
