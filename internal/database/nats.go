package database

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// ConnectNATS dials the NATS server that relays notification events between
// API nodes.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url must not be empty")
	}

	conn, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	return conn, nil
}
