// Package config loads runtime configuration from multiple sources (YAML files,
// a dotenv file, environment variables, CLI flags) with precedence: CLI flags >
// Environment variables > YAML config > Defaults. It exposes strongly typed
// settings, including the CORS origin policy and MongoDB connection details,
// to the rest of the application.
package config
