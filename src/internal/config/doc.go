// Package config parses and validates patu's configuration.
//
// Two documents are handled here:
//
//   - the CNI network configuration (JSON) the container runtime writes to the
//     plugin's stdin, either a single-plugin document or a configuration list;
//   - the dataplane daemon configuration (TOML) used by "patu dataplane".
//
// Struct tags drive validation through go-playground/validator. All failures
// of a document are collected into ValidationErrors so the runtime sees every
// problem at once.
package config
