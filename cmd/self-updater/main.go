package main

import "github.com/oshokin/self-updater/cmd/self-updater/cmd"

func main() {
	cmd.Execute()
}
