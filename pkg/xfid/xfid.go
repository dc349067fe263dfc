// Package xfid mints short correlation ids for a single transfer, used
// to tag log lines and metric series so concurrent transfers on the
// same host don't get tangled together in either stream.
package xfid

import "github.com/rs/xid"

// New returns a new transfer id, a 20-character lexically sortable
// string.
func New() string {
	return xid.New().String()
}
