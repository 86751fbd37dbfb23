// Command mslserver runs a local MSL peer for development.
//
// It negotiates sessions for both key-exchange schemes and answers the
// manifest and license calls with synthetic documents, so the msl CLI can be
// exercised end to end without a real service:
//
//	mslserver --addr 127.0.0.1:8080
//	msl --config dev.toml manifest 80000001
//
// Point [endpoints] at http://<addr>/msl/manifest and /msl/license.
package main
