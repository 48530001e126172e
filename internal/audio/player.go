package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

// Player plays agent speech (16 kHz mono s16le) through a Pulse playback
// stream. Queued audio can be dropped when the agent is interrupted.
type Player struct {
	client *pulse.Client
	stream *pulse.PlaybackStream

	mu     sync.Mutex
	queue  []int16
	closed bool
}

// StartPlayer opens and starts a playback stream on the default sink.
func StartPlayer() (*Player, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	player := &Player{client: client}
	stream, err := client.NewPlayback(
		pulse.Int16Reader(player.fill),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(SampleRate),
		pulse.PlaybackLatency(0.06),
		pulse.PlaybackMediaName("mindwell agent"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse playback stream: %w", err)
	}
	player.stream = stream
	stream.Start()
	return player, nil
}

// Write queues little-endian s16 PCM for playback.
func (p *Player) Write(pcm []byte) {
	samples := decodePCM(pcm)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, samples...)
}

// Interrupt drops all queued audio.
func (p *Player) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = nil
}

// Pending reports how much queued audio has not been handed to Pulse yet.
func (p *Player) Pending() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return samplesDuration(len(p.queue))
}

// Close stops playback and releases the Pulse connection.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.queue = nil
	p.mu.Unlock()

	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
	}
	if p.client != nil {
		p.client.Close()
	}
}

// fill feeds Pulse from the queue and pads with silence so the stream never
// underruns between utterances.
func (p *Player) fill(buf []int16) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, pulse.EndOfData
	}
	n := copy(buf, p.queue)
	p.queue = p.queue[n:]
	if len(p.queue) == 0 {
		p.queue = nil
	}
	clear(buf[n:])
	return len(buf), nil
}

func decodePCM(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples
}

func samplesDuration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / SampleRate
}
