package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Options{ServiceName: "test", Stdout: true, Writer: &buf})
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "unit-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, buf.String(), "unit-span")
}

func TestInitWithoutExporter(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{})
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "quiet-span")
	span.End()
	require.NoError(t, shutdown(context.Background()))
}
