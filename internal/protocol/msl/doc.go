// Package msl implements the wire side of the MSL (Message Security Layer)
// session-messaging protocol.
//
// # Overview
//
// Every message is a header document and one or more payload chunks. Each is
// serialized to JSON, AES-CBC encrypted under the session encryption key into
// an Envelope, and HMAC-SHA256 signed with the session signing key. On the
// wire the blocks are concatenated JSON objects with no separator:
//
//	{"headerdata":<b64 envelope>,"signature":<b64>,"mastertoken":{...}}
//	{"payload":<b64 envelope>,"signature":<b64>}...
//
// # Flows
//
// Handshake (no session yet):
//  1. Builder.Handshake emits a plain (unencrypted) header with handshake=true
//     and key-request data for the chosen scheme.
//  2. ParseHandshakeResponse extracts keyresponsedata; KeyResponse.Expect
//     checks the scheme.
//  3. UnwrapAsymmetricKeys recovers the session keys for the asymmetric
//     scheme. Device-backed key recovery lives with the device in
//     internal/services/session.
//
// Request/response (session established):
//  1. Builder.Build wraps an application request in the cadmium envelope,
//     gzips it into a single chunk and seals header and chunk.
//  2. Parser.Parse splits the response into frames, verifies (by default),
//     decrypts and inflates each chunk, concatenates them in order and
//     unwraps the application JSON.
//
// # Errors
//
// ErrNegotiation, ErrKeyNotFound, ErrDecryption, ErrFraming and ErrSignature
// are sentinels matched with errors.Is. Server-side rejections surface as
// *ServerError and application failures as *ApplicationError.
package msl
