package main

import "github.com/oshokin/morning-glow/cmd/glow-server/cmd"

func main() {
	cmd.Execute()
}
