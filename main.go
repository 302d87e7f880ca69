package main

import "repopilot/cmd"

func main() {
	cmd.Execute()
}
