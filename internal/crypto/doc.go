// Package crypto exposes the primitives used by the MSL envelope codec.
//
// Contents
//
//   - AES-CBC encryption with PKCS#7 padding and a fresh IV per call
//     (EncryptCBC, DecryptCBC)
//   - HMAC-SHA256 signing and constant-time verification (Sign, Verify)
//   - RSA keypair generation, PEM import/export and RSA-OAEP unwrapping
//     (GenerateKeypair, MarshalPrivateKey, ParsePrivateKey, UnwrapOAEP)
//   - gzip compression of payload data (Gzip, Gunzip)
//   - base64 helpers, including the unpadded base64url form used by JWK
//     key values (B64, DecodeB64, DecodeKeyURL)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Nothing in this package knows about MSL JSON shapes; see
// internal/protocol/msl for the envelope and framing layer.
package crypto
