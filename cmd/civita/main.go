package main

import "github.com/akorkmaz/civita/internal/cli"

func main() {
	cli.Run()
}
