package main

import (
	"github.com/anchorlabs/anchor-edge/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
