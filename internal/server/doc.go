// Package server exposes the analysis message contract over HTTP.
//
// Routes:
//
//	POST /v1/analyze        one request, one response
//	GET  /v1/ws             WebSocket; each text frame is a request
//	GET  /v1/reports        stored reports (?url=&limit=)
//	GET  /v1/reports/{id}   one stored report
//	GET  /v1/stats          analysis cache counters
//	GET  /healthz           liveness
//
// Analysis endpoints always answer with a complete response object.
// Failures are carried in its error field, never as a 5xx status.
package server
