// Package mcp exposes the broadcast server to MCP clients.
//
// Client is a thin proxy: every tool calls the REST API of a running
// server, so the MCP process never touches the world directly.
//
// Tools:
//   - world_state: snapshot of the boxes every viewer sees
//   - server_status: connections, active effect, clock period, counters
//   - send_chat: broadcast a chat line; jump, run and stress trigger effects
//   - trigger_effect: send_chat restricted to the effect commands
//   - list_profiles: simulation profiles in the config directory
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: the /mcp endpoint of the main server passes request bodies to
//     GetMCPServer().HandleMessage
package mcp
