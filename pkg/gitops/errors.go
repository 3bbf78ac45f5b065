package gitops

import "errors"

// ErrTagExists indicates a release tag is already present locally
var ErrTagExists = errors.New("tag already exists")
