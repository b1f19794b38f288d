// Package config loads application configuration from environment variables
// and optional .env files.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11: define a
// struct with `env` tags, call Load, and every component (queue, limiter,
// database, scheduler) reads its own settings the same way.
//
//	var cfg queue.Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// The default .env file in the working directory is loaded once per process;
// explicit files can be loaded earlier with LoadEnv.
package config
