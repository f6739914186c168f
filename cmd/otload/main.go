package main

import "github.com/OpenTraceLab/otload/cmd/otload/cmd"

func main() {
	cmd.Execute()
}
