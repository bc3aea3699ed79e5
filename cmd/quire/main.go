package main

import "github.com/tessro/quire/internal/cli"

func main() {
	cli.Execute()
}
