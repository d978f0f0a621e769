package main

import (
	"github.com/jvillegas/metasweep/cmd"
)

func main() {
	cmd.Execute()
}
