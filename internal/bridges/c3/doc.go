// Package c3 implements the ZKTeco C3 access-control panel bridge.
//
// The package talks to a C3 panel over its binary TCP protocol, polls the
// real-time log and turns every record into entity states published to MQTT
// for Home Assistant.
//
// # Architecture
//
//	┌──────────────┐   TCP    ┌─────────────────┐   MQTT   ┌────────────────┐
//	│   C3 panel   │◄────────►│    C3 Bridge    │─────────►│ Home Assistant │
//	└──────────────┘   4370   │   (this pkg)    │          └────────────────┘
//	                          └─────────────────┘
//
// # Key Responsibilities
//
//   - Open a session with the panel and read its device parameters
//   - Resolve the panel inventory (doors, readers, relays, aux inputs)
//   - Poll the real-time log on a fixed interval, one cycle at a time
//   - Normalize records, derive entity states and keep them in the store
//   - Publish entity states, the raw event feed and bridge health
//   - Republish discovery and states when Home Assistant restarts
//
// # Polling
//
// The panel returns at most a handful of new records per request along with
// a door/alarm status record (event code 255) on every call. Status records
// are skipped. A failed cycle publishes nothing and the connection is
// re-established on the next tick.
//
// # Thread Safety
//
// Client requests are serialized. Bridge methods are safe for concurrent use.
package c3
