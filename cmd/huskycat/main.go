package main

import (
	"fmt"
	"os"
)

func main() {
	code, err := Execute(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", err)
	}
	os.Exit(code)
}
