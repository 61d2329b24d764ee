package main

import "github.com/eventleads/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
