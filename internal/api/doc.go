// Package api provides the HTTP server for Order Relay.
//
// It exposes the endpoints the cloud backend calls (POST /order-notification,
// POST /test, GET /health), a metrics endpoint for local monitoring, and a
// WebSocket feed that broadcasts accepted orders to local dashboards.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
