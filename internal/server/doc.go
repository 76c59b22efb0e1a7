// Package server hosts the Fiber HTTP service, the request middleware chain,
// and the ordered dispatch table that classifies each inbound path into asset,
// local-module, or SPA-fallback handling. The dispatcher canonicalizes paths
// and rejects traversal attempts before any handler touches the filesystem.
// Keep exports narrow and accept explicit dependencies so handlers stay
// injectable in tests.
package server
