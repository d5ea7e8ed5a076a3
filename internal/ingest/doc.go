// Package ingest owns the per-camera media pipeline (C2 Encoding Pipeline)
// and the ingest supervisor (C3) that starts, stops, and health-monitors
// one pipeline per configured camera with exponential-backoff retry.
package ingest
