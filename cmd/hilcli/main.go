package main

import (
	"github.com/robotalks/hil.go/pkg/cli/sh"
	"github.com/robotalks/hil.go/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupHostFlags()
}

func main() {
	sh.Main()
}
