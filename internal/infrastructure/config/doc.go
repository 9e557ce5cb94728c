// Package config loads the gateway configuration.
//
// Values come from three layers, later ones winning: built-in defaults,
// a YAML file, and GRAYLOGIC_* environment variables named by the env
// struct tags. Passwords and tokens should come from the environment so
// the file can stay world-readable.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	srv.ReadTimeout = cfg.API.Timeouts.ReadTimeout()
package config
