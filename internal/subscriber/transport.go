package subscriber

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

type Message struct {
	Channel string
	Payload []byte
}

type Transport interface {
	Subscribe(ctx context.Context, channels []string) (Subscription, error)
}

// Subscription is a live pub/sub connection. Close must unblock a pending Receive.
type Subscription interface {
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// isTransient reports read and idle-timeout failures, which are reconnected immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "read error") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "i/o timeout")
}
