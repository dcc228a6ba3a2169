// Package websocket is the viewer transport of the broadcast server.
//
// The Hub upgrades HTTP requests with gorilla/websocket and hands each
// connection to the core as a session.Handle. Every Client runs two
// goroutines:
//
//   - readPump forwards text frames to Core.Receive and reports the close
//     code and reason to Core.Disconnect when the connection ends
//   - writePump drains the client's send buffer, one message per frame, and
//     pings the peer so idle viewers are detected within pongWait
//
// Send never blocks the core. A client whose buffer is full is closed with
// 1013 Try Again Later and its sends fail with ErrSendBufferFull.
//
// Shutdown closes every client with 1001 Going Away.
//
// Usage:
//
//	hub := websocket.NewHub(svc, logger)
//	router.HandleFunc("/ws", hub.ServeWS)
package websocket
