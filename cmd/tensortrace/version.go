package main

import "fmt"

// Version is the release version, injected via -ldflags at build
// time. Grounded on the pack-wide convention of an ldflags-settable
// package var (Sumatoshi-tech-codefang's pkg/version).
var Version = "dev"

func printVersion() {
	fmt.Printf("tensortrace %s\n", Version)
}
