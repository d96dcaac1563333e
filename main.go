package main

import "github.com/roessland/gearsync/cmd"

func main() {
	cmd.Execute()
}
