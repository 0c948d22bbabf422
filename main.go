// main is the entry point for the skysched CLI.
package main

import (
	"github.com/huangsam/skysched/cmd"
	"github.com/huangsam/skysched/internal/contract"
)

func main() {
	err := cmd.Execute()
	if stopErr := cmd.Shutdown(); stopErr != nil {
		contract.LogWarn("Shutdown", stopErr)
	}
	if err != nil {
		contract.LogFatal("Command failed", err)
	}
}
