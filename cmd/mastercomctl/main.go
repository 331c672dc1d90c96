package main

import "mastercom/internal/cli"

func main() {
	cli.Execute()
}
