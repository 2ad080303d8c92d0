// SPDX-License-Identifier: MPL-2.0

// Package config handles fedhost configuration using Viper with CUE as the file format.
//
// The file is looked up at the path given with --config, then at
// $XDG_CONFIG_HOME/fedhost/config.cue (platform equivalents on macOS and
// Windows), then at ./config.cue. Without a file the defaults apply. Files
// are validated against the embedded schema (config_schema.cue) before they
// are merged into Viper, so type errors carry the CUE path of the offending
// field.
package config
