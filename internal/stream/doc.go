// Package stream fans poll results out to websocket subscribers.
//
// It backs the CLI's --listen mode: each poll outcome is published as a
// JSON Update to every connected client. Slow clients have updates
// dropped rather than blocking the publisher.
package stream
