package main

import "github.com/ppiankov/hstswatch/internal/cli"

func main() {
	cli.Execute()
}
