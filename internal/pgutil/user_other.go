//go:build js || android || hurd || zos || wasip1 || appengine

package pgutil

import "errors"

func User() (string, error) {
	return "", errors.New("pgutil.User: not supported on current platform")
}
