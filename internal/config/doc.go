// Package config loads the TOML configuration of the MSL client.
//
// Load starts from Default, decodes the file over it, applies environment
// fallbacks (MSL_ESN, MSL_CACHE_PASSPHRASE), expands paths and validates
// the result. A missing file is not an error: defaults plus environment are
// enough to run.
package config
