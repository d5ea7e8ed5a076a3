// Package constants centralizes the control-API protocol version, method
// names, and wire error codes so internal/apiserver and its tests share one
// source of truth instead of duplicating magic numbers.
package constants
