// Package logging builds the zap logger used across the client.
//
// Console output is meant for an interactive terminal; JSON output is for
// collection. Caller annotations are only attached at debug level.
package logging
