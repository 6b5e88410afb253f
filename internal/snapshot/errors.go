package snapshot

import "errors"

// ErrSkipped is returned by a snapshotter that has nothing to snapshot.
var ErrSkipped = errors.New("snapshot skipped")

// ErrNoSnapshot is returned by RunAll when no snapshotter succeeded.
var ErrNoSnapshot = errors.New("no snapshot was taken")
