package main

import "github.com/kozaktomas/lookout/cmd"

func main() {
	cmd.Execute()
}
