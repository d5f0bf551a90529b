package main

import (
	"testudot/cmd/testudot/commands"
	"testudot/internal/components/telemetry"
	"testudot/lib/util/serviceutil"
)

func main() {
	telemetry.InitSlog(false)
	commands.ExecuteContext(serviceutil.SignalContext())
}
