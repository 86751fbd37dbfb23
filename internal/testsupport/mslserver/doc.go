// Package mslserver is an in-process MSL peer for tests and local
// development.
//
// It answers handshakes for both key-exchange schemes, decrypts and verifies
// incoming messages under the session it issued, and replies with chunked,
// sealed responses produced by EncodeResponse. Application behaviour is
// supplied per request path through Handle.
package mslserver
