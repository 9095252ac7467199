package main

import "price-oracle/src/cli"

// -----------------------------------------------------------------------------

func main() {
	cli.Execute()
}
