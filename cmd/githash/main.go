package main

import "github.com/ahrav/go-githash/cmd/githash/cmd"

func main() {
	cmd.Execute()
}
