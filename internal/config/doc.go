// Package config parses lxe.toml, the declarative build configuration
// consumed by the builder CLI's `build` and `init` commands. Parsing uses
// github.com/BurntSushi/toml, including its metadata-driven strict-key
// checking so unknown keys in [package] and [build] are reported as
// errors rather than silently ignored.
package config
