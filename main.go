// Package main is entrypoint for the application
package main

import (
	"voicemesh/cmd"
)

func main() {
	cmd.Run()
}
