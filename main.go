package main

import (
	_ "time/tzdata"

	"github.com/theirongolddev/fuelcheck/cmd"
)

func main() {
	cmd.Execute()
}
