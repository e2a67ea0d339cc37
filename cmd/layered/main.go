// Layered derives post timestamps from git history and writes a JSON corpus.
package main

import "github.com/CircuitCoder/layered/cmd/layered/internal/cli"

func main() {
	cli.Execute()
}
