// Package config loads and validates the bridge configuration.
//
// Configuration comes from three layers, each overriding the previous:
//   - hardcoded defaults
//   - an optional YAML file
//   - environment variables (DEVICE_IP, MQTT_BROKER_HOST, TIME_ZONE, ...)
//
// Credentials (DEVICE_PASSWORD, MQTT_PASSWORD) are best supplied through the
// environment. Config.String masks them for logging.
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("ZKTACCESS_CONFIG"))
//	if err != nil {
//	    return err
//	}
//	interval := cfg.GetPollingInterval()
package config
