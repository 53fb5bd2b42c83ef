package elfcore

import (
	"compress/gzip"
	"fmt"
)

// GzipSink wraps another Sink, deflating every write through a standard
// gzip-format stream (spec §4.3). There is no third-party gzip-format
// library anywhere in the retrieval pack and the spec requires literal
// RFC1952 interop with the cloud ingest side, so this stays on
// compress/gzip rather than hand-rolling DEFLATE.
type GzipSink struct {
	inner  Sink
	gz     *gzip.Writer
	synced bool
}

// NewGzipSink constructs an adapter that compresses into inner. The
// adapter adds no intermediate buffer of its own: compressed output goes
// to inner as compress/gzip emits it.
func NewGzipSink(inner Sink) *GzipSink {
	return &GzipSink{inner: inner, gz: gzip.NewWriter(&sinkWriter{inner})}
}

type sinkWriter struct {
	sink Sink
}

func (w *sinkWriter) Write(p []byte) (int, error) {
	if err := writeAll(w.sink, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Write streams p through the deflate compressor.
func (g *GzipSink) Write(p []byte) (int, error) {
	return g.gz.Write(p)
}

// Sync flushes the compressor with finish semantics (writing the gzip
// trailer) and propagates sync to the inner sink.
func (g *GzipSink) Sync() error {
	if err := g.gz.Close(); err != nil {
		return fmt.Errorf("elfcore: gzip finish failed: %w", err)
	}
	g.synced = true
	return g.inner.Sync()
}

// Close reports an error if Sync was never called, since that leaves
// compressed input buffered inside the deflate window that was never
// flushed to the inner sink (spec §4.3: "reports a failure if sync was
// not called before destruction").
func (g *GzipSink) Close() error {
	if !g.synced {
		return fmt.Errorf("elfcore: gzip sink destroyed without sync (residual buffered input)")
	}
	return nil
}
