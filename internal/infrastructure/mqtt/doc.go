// Package mqtt provides MQTT connectivity for the Gray Logic Gateway.
//
// The gateway uses the broker in two directions:
//
//   - The "mqtt" platform integration publishes action requests to
//     protocol bridges and listens for their state confirmations.
//   - A notification observer republishes every thing state change so
//     other site services can follow the gateway without polling it.
//
//	Gateway ↔ MQTT Broker ↔ Protocol Bridges
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllThingStates("knx"), 1,
//	    func(topic string, payload []byte) error {
//	        protocol, thingID, ok := mqtt.ParseThingStateTopic(topic)
//	        ...
//	    })
//
// Subscriptions are restored automatically after a reconnect. Handlers run
// on paho's goroutines and are wrapped with panic recovery.
//
// TLS should be enabled for production brokers (cfg.Broker.TLS=true).
package mqtt
