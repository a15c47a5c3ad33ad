// Package config provides the configuration of spider: crawl limits,
// output locations and report preferences collected from CLI flags, plus
// per-host overrides read from a .spider YAML file.
package config
