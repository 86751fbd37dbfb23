// Package playback issues the two application calls a player makes over MSL:
// the manifest lookup and the license request.
//
// Capability binds a negotiated session and a manifest into a
// domain.LicenseCapability value that a decryption device can call for its
// service certificate and licenses.
package playback
