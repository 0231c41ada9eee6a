package mastery

import "errors"

// ErrUnknownKC means an update named a knowledge component outside the
// catalog's KC set.
var ErrUnknownKC = errors.New("mastery: unknown knowledge component")
