package main

import "github.com/app-sre/proms-mcp/cmd"

func main() {
	cmd.Execute()
}
