package main

import "github.com/kozaktomas/fuzzysearch/cmd"

func main() {
	cmd.Execute()
}
