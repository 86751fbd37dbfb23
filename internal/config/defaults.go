package config

const (
	defaultManifestURL = "https://www.netflix.com/nq/msl_v1/cadmium/pbo_manifests/%5E1.0.0/router"
	defaultLicenseURL  = "https://www.netflix.com/nq/msl_v1/cadmium/pbo_licenses/%5E1.0.0/router"
)

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		MSL: MSL{
			Recipient:   "Netflix",
			Languages:   []string{"en-US"},
			Scheme:      SchemeAsymmetric,
			Verify:      "strict",
			TokenMargin: "10h",
		},
		Endpoints: Endpoints{
			Manifest: defaultManifestURL,
			License:  defaultLicenseURL,
		},
		Cache: Cache{
			Dir:     "~/.cache/mslclient",
			Backend: BackendFile,
		},
		Redis: Redis{
			Addr: "127.0.0.1:6379",
		},
		HTTP: HTTP{
			TimeoutSeconds: 30,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}
