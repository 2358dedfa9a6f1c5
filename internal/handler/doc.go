// Package handler implements the fleetscope HTTP API on gin.
//
// The server keeps the latest report per organization in memory and serves it as JSON
// or any codec format. POST /api/discover runs a new discovery pass; progress is
// streamed to /api/events subscribers through the SSE hub.
//
// Errors are returned as JSON with {error, details} and an appropriate status code.
package handler
