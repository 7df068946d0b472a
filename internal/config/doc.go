// Package config loads the scoped-installer configuration: which
// environment to activate, where its root lives under the home directory,
// and what install command to run inside it.
//
// Configuration is optional. Built-in defaults describe the original
// workflow (conda under ~/.local/bin/conda, environment "bin2dco-3.9",
// "pip install ."), and a project may override any field with a
// .scoped-installer file in YAML, JSONC or TOML format. The format is
// chosen by file extension:
//   - .yaml / .yml: gopkg.in/yaml.v3
//   - .json / .jsonc: github.com/tidwall/jsonc, then encoding/json
//   - .toml: github.com/pelletier/go-toml/v2
//
// Decoding always happens on top of the defaults, so a file only needs to
// mention the fields it changes.
package config
