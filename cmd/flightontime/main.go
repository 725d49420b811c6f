package main

import "github.com/vietddude/flightontime/internal/cli"

func main() {
	cli.Execute()
}
