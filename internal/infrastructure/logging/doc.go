// Package logging provides structured logging for the bridge.
//
// It wraps log/slog with the settings from config.LoggingConfig:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Every record carries service and version attributes.
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("panel connected", "serial", serial)
//
// Card numbers and PINs are credentials. Log them at debug level only.
package logging
