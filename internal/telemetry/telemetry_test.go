package telemetry

import (
	"context"
	"os"
	"testing"

	"gotest.tools/v3/assert"
)

func TestInitNoopWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	shutdown, err := Init(context.Background())
	assert.NilError(t, err)
	assert.NilError(t, shutdown(context.Background()))
}

func TestStartRunReturnsSpan(t *testing.T) {
	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	shutdown, err := Init(context.Background())
	assert.NilError(t, err)
	defer shutdown(context.Background())

	ctx, span := StartRun(context.Background(), []string{"cc", "-c", "hello.c"})
	assert.Check(t, ctx != nil)
	span.End()
}
