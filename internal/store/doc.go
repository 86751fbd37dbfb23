// Package store persists MSL credentials between runs.
//
// TokenFileStore and TokenRedisStore hold the negotiated session: the master
// token together with the symmetric keys bound to it. KeypairFileStore holds
// the client RSA keypair used by the asymmetric key exchange, optionally
// sealed under a passphrase.
//
// Loads fail closed. A missing, unreadable, corrupt or nearly expired entry is
// reported as absent, never as an error, so the caller simply negotiates
// again. Writes go through a temp file and an atomic rename, and can be
// serialised across processes with an advisory lock file.
package store
