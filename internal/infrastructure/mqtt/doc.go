// Package mqtt provides MQTT client connectivity for the Foyer event bus.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Event publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Foyer publishes device lifecycle events, authentication outcomes, and
// report workflow events to the broker. Other property systems (door
// controllers, dashboards, the night-audit job) subscribe to follow
// activity without polling the API. Foyer itself never subscribes: the
// bus is outbound only.
//
//	Foyer → MQTT Broker → Property Systems
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Nonces, signatures and device tokens never appear in payloads
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.PublishDeviceAuth(mqtt.DeviceAuthEvent{
//	    DeviceID: "scanner-reception-01",
//	    Outcome:  "verified",
//	})
package mqtt
