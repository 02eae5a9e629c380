package main

import (
	"authdns/cmd"
)

func main() {
	cmd.Execute()
}
