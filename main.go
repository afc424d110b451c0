package main

import (
	"fmt"
	"os"

	"github.com/honeycombio/otel-config-go/otelconfig"

	"github.com/santaclaude2025/insights/cmd"
	"github.com/santaclaude2025/insights/pkg/logger"
)

func main() {
	// Logging falls back to slog's default handler when file setup
	// fails; the run itself still proceeds.
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: file logging disabled:", err)
	}

	// Traces export only when the OTEL env vars are set; running
	// without them is fine.
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		logger.Warn("failed to configure OpenTelemetry", "error", err)
	} else {
		defer otelShutdown()
	}

	cmd.Execute()
}
