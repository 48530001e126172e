package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/rbright/mindwell/internal/config"
)

type cueKind int

const (
	cueConnect cueKind = iota + 1
	cueDisconnect
	cueResult
	cueError
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	cueRamp       = 5 * time.Millisecond
	cueFileLimit  = 4 * time.Second
)

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

func note(hz float64, ms int) toneSpec {
	return toneSpec{frequencyHz: hz, duration: time.Duration(ms) * time.Millisecond, volume: 0.16}
}

// cue pairs a built-in melody with the config field that may replace it.
type cue struct {
	melody []toneSpec
	file   func(config.IndicatorConfig) string
}

var cues = map[cueKind]cue{
	// Rising fifth.
	cueConnect: {
		melody: []toneSpec{note(587, 80), note(880, 90)},
		file:   func(c config.IndicatorConfig) string { return c.SoundConnectFile },
	},
	cueDisconnect: {
		melody: []toneSpec{note(880, 80), note(587, 110)},
		file:   func(c config.IndicatorConfig) string { return c.SoundDisconnectFile },
	},
	// Major arpeggio for a finished analysis.
	cueResult: {
		melody: []toneSpec{note(523, 70), note(659, 70), note(784, 120)},
		file:   func(c config.IndicatorConfig) string { return c.SoundResultFile },
	},
	cueError: {
		melody: []toneSpec{
			{frequencyHz: 440, duration: 90 * time.Millisecond, volume: 0.18},
			{frequencyHz: 330, duration: 140 * time.Millisecond, volume: 0.18},
		},
		file: func(c config.IndicatorConfig) string { return c.SoundErrorFile },
	},
}

var (
	pcmMu    sync.Mutex
	pcmCache = map[cueKind][]int16{}
)

// emitCue plays the configured file for kind, or the built-in melody when no
// file is set or it fails to play.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path := cuePath(kind, cfg); path != "" && playCueFile(ctx, path) == nil {
		return nil
	}
	if samples := cueSamples(kind); len(samples) > 0 {
		return playSamples(samples)
	}
	return nil
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	c, ok := cues[kind]
	if !ok {
		return ""
	}
	return expandHome(strings.TrimSpace(c.file(cfg)))
}

// expandHome resolves a leading "~" against the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

func playCueFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, cueFileLimit)
	defer cancel()

	if err := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path).Run(); err != nil {
		return fmt.Errorf("play cue file %q: %w", path, err)
	}
	return nil
}

// playSamples plays mono PCM on a short-lived pulse connection and waits for
// it to drain.
func playSamples(samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("mindwell"),
		pulse.ClientApplicationIconName("dialog-information"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	remaining := samples
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, remaining)
		remaining = remaining[n:]
		if len(remaining) == 0 {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("mindwell cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}

// cueSamples returns the rendered melody for kind, rendering it once.
func cueSamples(kind cueKind) []int16 {
	c, ok := cues[kind]
	if !ok {
		return nil
	}
	pcmMu.Lock()
	defer pcmMu.Unlock()
	if pcm, ok := pcmCache[kind]; ok {
		return pcm
	}
	pcm := synthesizeCue(c.melody)
	pcmCache[kind] = pcm
	return pcm
}

// synthesizeCue renders tones back to back with a short silence between them.
func synthesizeCue(melody []toneSpec) []int16 {
	gap := make([]int16, samplesForDuration(cueGap))
	var pcm []int16
	for i, tone := range melody {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, synthesizeTone(tone)...)
	}
	return pcm
}

func synthesizeTone(tone toneSpec) []int16 {
	n := samplesForDuration(tone.duration)
	if n <= 0 || tone.frequencyHz <= 0 || tone.volume <= 0 {
		return nil
	}

	ramp := min(max(n/10, 1), samplesForDuration(cueRamp))
	step := 2 * math.Pi * tone.frequencyHz / cueSampleRate
	pcm := make([]int16, n)
	for i := range pcm {
		// Linear fade at both edges.
		gain := min(1, float64(i)/float64(ramp), float64(n-1-i)/float64(ramp))
		pcm[i] = int16(math.Round(math.Sin(step*float64(i)) * tone.volume * gain * math.MaxInt16))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
