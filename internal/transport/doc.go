// Package transport provides the HTTP implementation of domain.Transport.
//
// MSL messages are opaque byte bodies POSTed to a manifest or license
// endpoint. The transport adds browser-like headers, honours an optional
// proxy and timeout, and returns the status and body without interpreting
// them; status handling belongs to the protocol layer.
package transport
