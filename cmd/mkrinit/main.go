//go:build !tinygo

// Command mkrinit writes the built-in rinit ELF image to a file, for use
// with -rinit.
package main

import (
	"flag"
	"fmt"
	"os"

	"capos/elf"
	"capos/user/rinit"
)

func main() {
	out := flag.String("o", "rinit.elf", "Output path.")
	flag.Parse()

	img := rinit.Image()
	bin, err := elf.Parse(img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkrinit: built-in image: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, img, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "mkrinit: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s: %d bytes, entry %s, %d segments\n", *out, len(img), bin.Entry, len(bin.Segments))
}
