package main

import (
	"context"
	"log/slog"
	"os"

	"vitasana-backend/cmd/vitasana/commands"
	"vitasana-backend/lib/serviceutil"
	"vitasana-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(false)
	tel, err := telemetry.SetupFromEnv(context.Background(), "vitasana")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	if err == nil {
		defer tel.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(context.Background())
	} else {
		slog.Debug("no telemetry.json5 found, telemetry disabled")
	}

	commands.ExecuteContext(ctx)
}
