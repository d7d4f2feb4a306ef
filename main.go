// Package main is the entry point for the codstats CLI, which loads match
// performance exports and computes filtered statistics over them.
package main

import "github.com/pable/codstats/cmd"

func main() {
	cmd.Execute()
}
