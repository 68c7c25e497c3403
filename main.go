package main

import (
	"github.com/ncastellan/netrecon/cmd"
	"github.com/ncastellan/netrecon/internal/config"
)

func main() {
	config.LoadConfig()
	cmd.Execute()
}
