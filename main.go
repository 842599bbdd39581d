package main

import (
	"VoxTA/cmd"
)

func main() {
	cmd.Execute()
}
