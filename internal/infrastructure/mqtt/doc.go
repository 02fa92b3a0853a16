// Package mqtt wraps paho.mqtt.golang for the bridge.
//
// It provides:
//   - connection management with auto-reconnect
//   - an availability topic backed by a retained Last Will ("online"/"offline")
//   - publish/subscribe with input validation and timeouts
//   - subscriptions restored after every reconnect
//   - topic builders for entity state, attributes and raw events
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, "C3-400", serial)
//	err = client.Publish(topics.EntityState("door_1"), []byte("ON"), 1, false)
package mqtt
