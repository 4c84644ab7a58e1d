// Package server wires HTTP handlers into a router for the QuickRoom
// application.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter configures and returns the application router. It sets up
// handlers for the health check, the WebSocket endpoint, and the demo page.
func NewRouter(hub *Hub) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", WebSocketHandler(hub))
	r.HandleFunc("/demo", DemoPageHandler).Methods(http.MethodGet)
	return r
}
