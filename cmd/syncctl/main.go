package main

import "github.com/erauner12/toolbridge-sync/cmd/syncctl/cmd"

func main() {
	cmd.Execute()
}
