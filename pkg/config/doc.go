// Package config loads typed configuration structs from the environment.
//
// It wraps github.com/joho/godotenv (optional .env files) and
// github.com/caarlos0/env/v11 (struct tags). Each configuration type is parsed
// once per process and cached; ResetCache and ForceReload exist for tests.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
package config
