package main

import (
	"os"
	"strings"
)

func styleTarget(v string) string  { return style("1;36", v) }
func styleFailure(v string) string { return style("1;31", v) }

// style wraps v in an ANSI SGR sequence unless color output is disabled
// (NO_COLOR set, or TERM empty or dumb).
func style(code, v string) string {
	if v == "" || !colorWanted() {
		return v
	}
	return "\033[" + code + "m" + v + "\033[0m"
}

func colorWanted() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.TrimSpace(os.Getenv("TERM")) {
	case "", "dumb":
		return false
	}
	return true
}
