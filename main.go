package main

import "github.com/kestrelsound/jukebox/cmd"

func main() {
	cmd.Execute()
}
