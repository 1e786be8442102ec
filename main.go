package main

import (
	"github.com/escion333/autoUSD-sub000/cmd"
)

func main() {
	cmd.Execute()
}
