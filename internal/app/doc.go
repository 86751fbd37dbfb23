// Package app wires application dependencies for the CLI.
//
// It builds the credential cache, transport, protocol codec and high-level
// services from a loaded config.Config, exposing them via the Wire struct
// for commands to use.
package app
