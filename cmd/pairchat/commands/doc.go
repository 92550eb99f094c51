// Package commands defines the pairchat CLI.
//
// Commands
//
//   - serve   Run the relay server (TCP, optional WebSocket and metrics)
//   - dial    Connect to a relay over TCP from the terminal
package commands
