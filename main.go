package main

import (
	"os"

	"forum-sync/command"
)

func main() {
	os.Exit(command.Execute())
}
