// Package config loads quiu server configuration. Default() is the baseline;
// Load reads a JSON or YAML file over it and FromEnv overlays QUIU_*
// variables. Path values may reference environment variables as $VAR.
//
// Example:
//
//	cfg, err := config.Load("/etc/quiu.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if cfg.DataDir == "" {
//	    cfg.DataDir = config.DefaultDataDir()
//	}
package config
