package main

import (
	"ntp-monitor/cmd/monitor/cmd"
)

func main() {
	cmd.Execute()
}
