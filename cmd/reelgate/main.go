package main

import "github.com/reelgate/reelgate/cmd/reelgate/cmd"

func main() {
	cmd.Execute()
}
