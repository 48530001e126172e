package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	SampleRate     = 16000
	chunkSizeBytes = 640 // 20ms @ 16kHz mono s16
	chunkBacklog   = 64
)

// Capture streams fixed-size PCM chunks from one selected Pulse source.
// Chunks are dropped rather than blocking Pulse when the consumer stalls.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
	dropped  atomic.Int64
}

// StartCapture starts a 16 kHz mono s16 record stream. The stream stops when
// ctx is done or Close is called.
func StartCapture(ctx context.Context, selected Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	capture := &Capture{
		device: selected,
		client: client,
		chunks: make(chan []byte, chunkBacklog),
		stopCh: make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("mindwell conversation"),
	)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = capture.Stop()
		case <-capture.stopCh:
		}
	}()

	return capture, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks returns the PCM stream as fixed-size byte slices.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// ChunksDropped reports chunks discarded because the consumer fell behind.
func (c *Capture) ChunksDropped() int64 {
	return c.dropped.Load()
}

// Stop halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 {
		select {
		case c.chunks <- pending:
		default:
		}
	}

	close(c.chunks)
	return nil
}

// Close stops the capture.
func (c *Capture) Close() {
	_ = c.Stop()
}

func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as stopped so Stop's Wait cannot race it.
	c.inflight.Add(1)

	c.pending = append(c.pending, buffer...)
	var chunks [][]byte
	for len(c.pending) >= chunkSizeBytes {
		chunk := make([]byte, chunkSizeBytes)
		copy(chunk, c.pending[:chunkSizeBytes])
		c.pending = c.pending[chunkSizeBytes:]
		chunks = append(chunks, chunk)
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		select {
		case c.chunks <- chunk:
		default:
			c.dropped.Add(1)
		}
	}
	return len(buffer), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
