package main

import "github.com/oshokin/morning-glow/cmd/glowctl/cmd"

func main() {
	cmd.Execute()
}
