// Package session establishes MSL sessions.
//
// Negotiate returns a cached session when one is still valid for the
// configured margin. Otherwise it prepares key material for the configured
// key exchange (an RSA keypair, or a request from the decryption device),
// performs the handshake, extracts the session keys and persists the result.
//
// Every failure during the handshake is fatal and wraps msl.ErrNegotiation or
// msl.ErrKeyNotFound. Nothing is retried here.
package session
