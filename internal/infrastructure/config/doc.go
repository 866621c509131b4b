// Package config provides 12-factor configuration for the launcher backend.
//
// Values come from environment variables with defaults. A .env file in the
// working directory is read first; variables already present in the
// environment take precedence over it.
//
// Configuration Sections:
//   - Server: control API bind address
//   - Presence: Discord application id, enable switch, call timeout
//   - Paths: data directory override
//   - Logging: log level and output format
//   - RateLimit: control API rate limiting
//
// Environment Variables:
//   - KEPLER_HOST, KEPLER_PORT, KEPLER_DATA_DIR
//   - DISCORD_APP_ID, PRESENCE_ENABLED, PRESENCE_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
