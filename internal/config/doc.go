// Package config loads and validates the tick tool's YAML
// configuration. Values are layered: file, then ${ENV} expansion,
// then defaults for anything left unset.
package config
