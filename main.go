package main

import (
	"github.com/inetrg/spoki/cmd"
)

func main() {
	cmd.Execute()
}
