// Package logging builds the service's slog logger.
//
// Entries carry service=pwrstat-mqtt and the build version. Components get
// a child logger tagged with "component" (mqtt, publisher, ups, history,
// pwrstatd). Format, level and output come from the logging section:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// The MQTT password and the InfluxDB token must never be logged.
package logging
