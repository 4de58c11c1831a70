package main

import "github.com/alde/epaper-relay/cmd"

func main() {
	cmd.Execute()
}
