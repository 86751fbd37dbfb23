// Package commands defines the msl CLI and wires dependencies for subcommands.
//
// Commands
//
//   - negotiate     Establish (or reuse) a session and print its token
//   - request       Send one raw application request and print the result
//   - manifest      Fetch the playback manifest of a viewable
//   - license       Exchange a device challenge for a license
//   - fingerprint   Print the client keypair fingerprint
//   - cache clear   Remove the cached session and keypair
//
// # Implementation
//
// The root command loads the TOML config, builds the zap logger and the
// dependency graph (stores, transport, services) before any subcommand runs,
// and closes it afterwards.
package commands
