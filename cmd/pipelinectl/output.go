package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
)

var stdout io.Writer = os.Stdout

func header(format string, args ...any) {
	headerColor.Fprintf(stdout, format, args...)
}

func okf(format string, args ...any) {
	okColor.Fprintf(stdout, format, args...)
}

func warnf(format string, args ...any) {
	warnColor.Fprintf(stdout, format, args...)
}

func errorf(format string, args ...any) {
	errColor.Fprintf(os.Stderr, format, args...)
}

func plainf(format string, args ...any) {
	fmt.Fprintf(stdout, format, args...)
}
