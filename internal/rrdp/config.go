package rrdp

import "github.com/marmos91/rrdpworker/internal/bytesize"

// EngineConfig is the subset of pkg/config.EngineConfig the engine needs to
// run — kept as its own type so this package does not import pkg/config.
type EngineConfig struct {
	Concurrency    int
	ReadBufferSize bytesize.ByteSize
}
