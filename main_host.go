//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"capos/app"
	"capos/hal"
	"capos/user/rinit"
)

func main() {
	var cfg hal.HeadlessConfig
	var acfg app.Config
	var rinitPath string
	var ramMiB uint64
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&cfg.Hz, "hz", 60, "Tick rate in headless mode.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.BoolVar(&cfg.TTY, "tty", false, "Forward terminal keystrokes to the keyboard in headless mode.")
	flag.StringVar(&rinitPath, "rinit", "", "Load the rinit ELF image from this file instead of the built-in one.")
	flag.Uint64Var(&ramMiB, "ram", 64, "Physical memory in MiB.")
	flag.StringVar(&acfg.VGASnapshot, "vga-png", "", "Rewrite this PNG whenever the VGA text page changes.")
	flag.BoolVar(&acfg.Trace, "trace", false, "Log every system call.")
	flag.Parse()

	hc := hal.HostConfig{
		RAMBytes: ramMiB << 20,
		Rinit:    rinit.Image(),
		Programs: rinit.Programs(),
	}
	if rinitPath != "" {
		b, err := os.ReadFile(rinitPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		hc.Rinit = b
	}
	newApp := func(h hal.HAL) func() error { return app.NewWithConfig(h, acfg) }

	if cfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, newApp, cfg, hc); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(newApp, hc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
