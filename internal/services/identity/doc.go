// Package identity manages the client RSA keypair used by the asymmetric key
// exchange.
//
// A stored keypair is reused; otherwise a fresh 2048-bit key is generated and
// persisted via the domain.KeypairStore.
package identity
