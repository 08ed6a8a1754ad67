package main

import "github.com/linkrx/formident/internal/interfaces/cli"

func main() {
	cli.Execute()
}
