// Package gateway exposes the agent engine over HTTP.
//
// Endpoints:
//   - POST /chat streams the events of one request as server-sent events
//   - GET /ws accepts one envelope over a WebSocket and sends one JSON frame per event
//   - GET /health reports liveness
//   - GET /metrics serves prometheus metrics
//
// Every handler drains the engine stream to completion, even after the client goes away,
// so that the engine's producer goroutine always exits.
package gateway
