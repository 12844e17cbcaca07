package main

import "github.com/matthieukhl/loom/internal/cmd"

func main() {
	cmd.Execute()
}
