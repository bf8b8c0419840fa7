// Package mqtt provides MQTT client connectivity for Order Relay.
//
// This package manages:
//   - Connection to the local Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The relay uses MQTT to reach machine controllers that live on the same
// LAN as the Raspberry Pi. The broker decouples the relay from the
// machine-side firmware:
//
//	Cloud backend → Order Relay ↔ MQTT Broker ↔ Machine controller
//
// # Security Considerations
//
//   - TLS is required when the broker is not on localhost
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Publish a brew command
//	topic := mqtt.Topics{}.MachineCommand("coffee-machine")
//	client.Publish(topic, []byte(`{"orders":[{"name":"espresso"}]}`), 1, false)
//
//	// Watch for acknowledgements
//	err = client.Subscribe(mqtt.Topics{}.AllMachineAcks(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("ack: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
