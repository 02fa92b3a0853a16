// Package homeassistant builds MQTT discovery messages for Home Assistant.
//
// Every panel entity gets a retained config message under
//
//	{discovery_prefix}/{component}/{serial}/{object_id}/config
//
// pointing at the bridge's state topics. Home Assistant announces restarts
// on {discovery_prefix}/status; the bridge republishes discovery and states
// when it sees "online" there.
package homeassistant
