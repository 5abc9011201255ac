// Package ws implements the WebSocket live stream of fused readings.
//
// New(store, interval) creates a Hub.
// Hub.Run(ctx) broadcasts on every tick and after every Notify; it blocks
// until ctx is cancelled, then closes all active connections.
// Hub.Notify() is called by the agent after each cycle is stored.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// snapshot immediately on connect, then streams updates.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot" | "cycle",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. The endpoint is mounted at /ws/stream.
package ws
