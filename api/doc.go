// Package api provides the HTTP surface of the broadcast server.
//
// Endpoints:
//
// Health and landing page:
//   - GET /health - {"status":"ok","connections":N}
//   - GET / - informational HTML page with the live connection count
//
// Viewers:
//   - GET /ws - WebSocket upgrade. Upgrade requests are accepted on any path.
//
// Operator introspection:
//   - GET /api/world - snapshot of every box
//   - GET /api/status - connections, active effect, clock period, counters
//   - GET /api/profiles - simulation profiles available in the config directory
//
// Operator injection:
//   - POST /api/chat - {"text":"run","from":"ops"} is fanned out as chat and
//     runs the same commands viewer chat does
//
// Errors are returned as JSON with an appropriate status code:
//
//	{"error": "service closed"}
//
// Usage:
//
//	hub := websocket.NewHub(svc, logger)
//	server := api.NewServer(svc, hub, configManager, logger)
//	http.ListenAndServe(":8080", server)
package api
