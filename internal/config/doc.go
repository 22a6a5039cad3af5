// Package config provides the configuration of the tineye command: defaults,
// the YAML configuration file with named credential profiles, environment
// overrides and conversion into client options.
package config
