// Package config loads environment-driven configuration structs.
//
// It wraps github.com/caarlos0/env with optional .env file support via
// godotenv and a per-type cache so every package can declare and load
// its own configuration struct without coordinating with the rest of
// the application.
package config
