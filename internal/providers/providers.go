// Package providers holds the outbound channel adapters: SMTP email,
// Telegram chat and the in-app notification store with live WebSocket push.
package providers

import "errors"

// ErrNoAddress is returned when a recipient lacks the address a channel needs.
var ErrNoAddress = errors.New("recipient has no address for channel")
