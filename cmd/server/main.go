package main

import "go-query-gateway/internal/cli"

func main() {
	cli.Execute()
}
