// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation, which is how the gateway URL is injected per environment
// (local/staging/production) without baking it into the file.
package config
