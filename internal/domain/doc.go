// Package domain defines the core MSL data models and the contracts between
// the protocol, the credential cache and the outside world.
//
// It holds plain wire/state types (MasterToken, Session, Header, PayloadChunk,
// Envelope), the key-exchange variants and the collaborator interfaces
// (Transport, Device, stores). It has no behaviour beyond small helpers on
// those types.
package domain
