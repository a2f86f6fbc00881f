package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Options NATS连接参数
type Options struct {
	URL  string
	Name string
}

// Connect 连接NATS，断线后无限重连
func Connect(opts Options) (*nats.Conn, error) {
	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS %s: %w", opts.URL, err)
	}
	return nc, nil
}
