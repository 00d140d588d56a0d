package server

import "net/http"

func NewMux(api *API, hub *Hub, origins *OriginPolicy) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/graph", api.HandleGraph)
	mux.HandleFunc("GET /api/graph.dot", api.HandleGraphDOT)
	mux.HandleFunc("POST /api/nodes", api.HandleAddNode)
	mux.HandleFunc("PATCH /api/nodes/{id}", api.HandleUpdateNode)
	mux.HandleFunc("POST /api/edges", api.HandleConnect)
	mux.HandleFunc("POST /api/run", api.HandleRun)
	mux.HandleFunc("GET /api/runs/{id}", api.HandleGetRun)
	mux.Handle("GET /api/events", hub)
	mux.HandleFunc("GET /healthz", api.HandleHealth)

	return CORS(origins, LogRequests(mux))
}
