package cluster

import (
	"context"
	"errors"
	"net"
	"os"
)

// IsTimeout reports whether err is a quiet-poll timeout rather than a
// real transport failure. The poll loop treats these as "no event yet"
// and polls again immediately.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
