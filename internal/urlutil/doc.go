// Package urlutil provides the URL normalization and filtering helpers
// shared by the link store, the producer, and the parser: trailing-slash
// normalization, the junk-domain heuristic, top-level URL extraction,
// non-HTML extension filtering, and seed URL extraction from free text.
package urlutil
