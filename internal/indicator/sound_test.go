package indicator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbright/mindwell/internal/config"
	"github.com/stretchr/testify/require"
)

func TestCueSamplesPresent(t *testing.T) {
	for _, kind := range []cueKind{cueConnect, cueDisconnect, cueResult, cueError} {
		require.NotEmpty(t, cueSamples(kind))
	}
	require.Empty(t, cueSamples(cueKind(99)))
}

func TestCuePathUsesConfiguredFiles(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	cfg := config.IndicatorConfig{
		SoundConnectFile: "~/cues/connect.wav",
		SoundErrorFile:   " /tmp/error.wav ",
	}
	require.Equal(t, "/home/tester/cues/connect.wav", cuePath(cueConnect, cfg))
	require.Equal(t, "/tmp/error.wav", cuePath(cueError, cfg))
	require.Empty(t, cuePath(cueResult, cfg))
}

func TestSynthesizeToneDuration(t *testing.T) {
	got := synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0.2})
	want := samplesForDuration(100 * time.Millisecond)
	require.Len(t, got, want)
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: 100 * time.Millisecond, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0}))
}

func TestSynthesizeCueIncludesGaps(t *testing.T) {
	parts := []toneSpec{
		{frequencyHz: 440, duration: 50 * time.Millisecond, volume: 0.1},
		{frequencyHz: 660, duration: 50 * time.Millisecond, volume: 0.1},
	}
	want := 2*samplesForDuration(50*time.Millisecond) + samplesForDuration(22*time.Millisecond)
	require.Len(t, synthesizeCue(parts), want)
}

func TestEmitCueRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := emitCue(ctx, cueConnect, config.IndicatorConfig{})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}
