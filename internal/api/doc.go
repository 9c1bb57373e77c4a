// Package api implements the admin HTTP API of the content queue. Handlers
// translate requests into queue, topic, series and settings operations and
// map their errors onto HTTP status codes.
package api
