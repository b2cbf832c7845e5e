package database

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// ConnectNATS establishes a connection to the NATS broker. The URL is
// optional: run progress events fall back to in-process delivery when no
// broker is configured, so an empty URL yields a nil connection, not an
// error.
func ConnectNATS(url, appName string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url,
		nats.Name(appName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	return conn, nil
}
