// Package api serves an OpenAI-compatible chat completions endpoint
// over the query engine. Clients that speak the OpenAI chat API can
// point at it directly; the caller's access context travels in request
// headers.
package api
