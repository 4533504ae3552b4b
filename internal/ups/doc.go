// Package ups reads CyberPower UPS status and models it as a Snapshot.
//
// Status comes from the PowerPanel `pwrstat -status` command, which talks to
// the pwrstatd daemon over its local socket. Each read produces a flat
// Snapshot keyed by snake_case field names:
//
//	model_name         "CP1500PFCLCD"
//	utility_voltage    121
//	battery_capacity   100
//	load               "72 Watt(8 %)"
//	load_watt          72
//	load_pct           8
//	line_power         true
//	on_battery         false
//
// A Snapshot is encoded to JSON immediately before it is published and is
// not kept afterwards.
package ups
