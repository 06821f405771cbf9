// Package record implements an asynchronous msgpack frame recorder:
// an Engine observer that logs the metadata of every frame crossing a
// connection (ids, direction, kind, message and action counts; not the
// payloads) to a sink for debugging, without adding I/O latency to the
// connection's hot path.
package record

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sadewadee/maboo-spoa/internal/spoe/spop"
)

// Entry is one recorded frame event, msgpack-encoded to the sink.
type Entry struct {
	Timestamp int64  `msgpack:"ts"`
	StreamID  uint64 `msgpack:"stream_id"`
	FrameID   uint64 `msgpack:"frame_id"`
	Direction string `msgpack:"dir"` // "in" or "out"
	Kind      string `msgpack:"kind"`
	Messages  int    `msgpack:"messages,omitempty"`
	Actions   int    `msgpack:"actions,omitempty"`
}

// Recorder buffers Entry values on a bounded channel and flushes them
// to Sink from a single background goroutine, so a slow or stalled
// sink cannot back-pressure the SPOP connection loop.
type Recorder struct {
	sink    io.Writer
	logger  *slog.Logger
	entries chan Entry

	dropped atomic.Int64
	written atomic.Int64

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a Recorder writing to sink. bufSize bounds the number of
// in-flight entries before new ones are dropped (and counted) rather
// than blocking the caller.
func New(sink io.Writer, bufSize int, logger *slog.Logger) *Recorder {
	if bufSize <= 0 {
		bufSize = 1024
	}
	return &Recorder{
		sink:    sink,
		logger:  logger,
		entries: make(chan Entry, bufSize),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the flush loop. Call once before attaching to an engine.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop drains pending entries (best-effort) and stops the flush loop.
func (r *Recorder) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// ObserveFrame satisfies the engine's observer interface.
func (r *Recorder) ObserveFrame(streamID, frameID uint64, dir string, f *spop.Frame) {
	e := Entry{
		Timestamp: time.Now().UnixNano(),
		StreamID:  streamID,
		FrameID:   frameID,
		Direction: dir,
		Kind:      f.Kind.String(),
		Messages:  len(f.Messages),
		Actions:   len(f.Actions),
	}
	select {
	case r.entries <- e:
	default:
		r.dropped.Add(1)
	}
}

// Stats reports recorder throughput for the admin surface.
type Stats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
}

// Stats returns current write/drop counters.
func (r *Recorder) Stats() Stats {
	return Stats{Written: r.written.Load(), Dropped: r.dropped.Load()}
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.entries:
			r.write(e)
		case <-r.stopCh:
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.entries:
			r.write(e)
		default:
			return
		}
	}
}

func (r *Recorder) write(e Entry) {
	payload, err := msgpack.Marshal(e)
	if err != nil {
		r.logger.Warn("record: marshal failed", "err", err)
		return
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := r.sink.Write(lenPrefix[:]); err != nil {
		r.logger.Warn("record: sink write failed", "err", err)
		return
	}
	if _, err := r.sink.Write(payload); err != nil {
		r.logger.Warn("record: sink write failed", "err", err)
		return
	}
	r.written.Add(1)
}

// ReadEntry reads one length-prefixed msgpack Entry from r, for replay
// tooling. Returns io.EOF when the stream is exhausted cleanly.
func ReadEntry(r io.Reader) (Entry, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Entry{}, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Entry{}, fmt.Errorf("record: reading entry body: %w", err)
	}
	var e Entry
	if err := msgpack.Unmarshal(buf, &e); err != nil {
		return Entry{}, fmt.Errorf("record: unmarshaling entry: %w", err)
	}
	return e, nil
}
