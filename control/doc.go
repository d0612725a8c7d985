// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, tunables and debug introspection for vdma-stream.
//
// Provides concurrent-safe state handling primitives including:
//   - Metrics published by the streaming loop and the receiver
//   - A tunables store whose listeners apply hot-reloaded settings
//   - Debug probes exposing engine registers and platform facts
package control
