// Package server implements the HTTP and WebSocket side of the presence chat.
//
// The Hub drives every connection through connecting, joined and closed,
// delegating state to the session registry, notifications to the presence
// tracker and fan-out to the broadcast router. The remaining files cover
// configuration, websocket clients, routing, and HTTP handlers.
package server
