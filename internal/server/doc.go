// Package server runs the agent's control API listener.
//
// The server is driven by a context: it serves until the context is
// cancelled and then shuts down gracefully, so it can run next to the
// background workers under one errgroup.
package server
