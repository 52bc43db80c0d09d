package main

import (
	"LyricStage/cmd"
)

func main() {
	cmd.Execute()
}
