// Package config loads, validates and watches the keygate configuration.
//
// The configuration is a YAML file. ${VAR} and ${VAR:-default} references are
// substituted from the environment before parsing, and the file is decoded
// over DefaultConfig, so omitted settings keep their defaults. In particular
// auth.forceApiKey is true unless the file sets it to false.
//
//	cfg, err := config.LoadConfig("configs/keygate.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    return err
//	}
//
// A Watcher reloads the file on change and hands each valid configuration
// to a callback.
package config
