package main

import "github.com/no2fpga/no2build/internal/cli"

func main() {
	cli.Main()
}
