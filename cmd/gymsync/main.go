package main

import (
	"fmt"
	"os"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gymsync:", err)
		os.Exit(1)
	}
}
