package main

import "github.com/RyanBlaney/taptone/cmd"

func main() {
	cmd.Execute()
}
