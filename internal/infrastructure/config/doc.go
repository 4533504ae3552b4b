// Package config loads the pwrstat-mqtt configuration.
//
// Load starts from built-in defaults, overlays the YAML file, then applies
// PWRSTAT_* environment variables (PWRSTAT_MQTT_HOST, PWRSTAT_MQTT_PORT,
// PWRSTAT_MQTT_CLIENT_ID, PWRSTAT_MQTT_USERNAME, PWRSTAT_MQTT_PASSWORD,
// PWRSTAT_MQTT_TOPIC, PWRSTAT_INFLUXDB_TOKEN, PWRSTAT_DATABASE_PATH,
// PWRSTAT_LOG_LEVEL) and finally validates the result. Validation reports
// every problem at once.
//
// Keep the broker password and InfluxDB token in the environment rather
// than in the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := cfg.MQTT.RefreshInterval()
package config
