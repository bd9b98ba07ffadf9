package main

import (
	"context"

	"coursepilot-backend/cmd/coursepilot-cli/commands"
	"coursepilot-backend/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)
	telemetry.SetupFromEnv(context.Background(), "coursepilot-cli")
	commands.ExecuteContext(context.Background())
}
