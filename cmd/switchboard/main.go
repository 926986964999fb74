package main

import "github.com/steveyegge/switchboard/internal/cmd"

func main() {
	cmd.Execute()
}
