// Package query implements role-aware retrieval and answer synthesis.
//
// The Engine embeds a question, builds an access filter from the
// caller's user context, and searches chunk storage with that filter
// attached, so access control is enforced inside the vector search
// rather than by post-filtering results. An empty user context runs
// the search unfiltered; the bypass is logged.
package query
