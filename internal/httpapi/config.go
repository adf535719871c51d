package httpapi

import (
	"modelkit/internal/config"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Options configures the HTTP surface.
type Options struct {
	// MaxBodyBytes limits JSON request bodies. Non-positive means 1 MiB.
	MaxBodyBytes int64
	// CORS is opt-in. If disabled, no CORS middleware is added.
	CORSEnabled        bool
	CORSAllowedOrigins []string
}

// OptionsFromConfig maps the server section of the config file.
func OptionsFromConfig(c config.ServerConfig) Options {
	return Options{
		MaxBodyBytes:       c.MaxBodyBytes,
		CORSEnabled:        c.CORSEnabled,
		CORSAllowedOrigins: append([]string(nil), c.CORSOrigins...),
	}
}

func (o Options) maxBody() int64 {
	if o.MaxBodyBytes <= 0 {
		return defaultMaxBodyBytes
	}
	return o.MaxBodyBytes
}
