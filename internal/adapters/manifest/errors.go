package manifest

import "errors"

// ErrInvalidManifest is returned when innersource.json is not a JSON object.
var ErrInvalidManifest = errors.New("manifest: invalid innersource.json")
