package main

import "github.com/KazimiOrg/telemetry/cmd/telemetryctl/cmd"

func main() {
	cmd.Execute()
}
