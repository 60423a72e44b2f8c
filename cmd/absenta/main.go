package main

import "github.com/vietddude/absenta/internal/cli"

func main() {
	cli.Execute()
}
