// Package message exchanges application requests over an established MSL
// session.
//
// Send builds a sealed request with msl.Builder, posts it through the
// domain.Transport and parses the chunked response back into the
// application JSON it carries.
package message
