// Package ansi renders SGR escape sequences for sessions that negotiated
// color. Callers pass the session's ansi-enabled flag; when it is false
// every helper returns the input unchanged.
package ansi

import "strings"

// SGR codes.
const (
	Reset   = "\x1b[0m"
	Bold    = "\x1b[1m"
	Red     = "\x1b[31m"
	Green   = "\x1b[32m"
	Yellow  = "\x1b[33m"
	Blue    = "\x1b[34m"
	Magenta = "\x1b[35m"
	Cyan    = "\x1b[36m"
	White   = "\x1b[37m"
)

// Wrap surrounds s with the given code and a reset when enabled is true.
func Wrap(enabled bool, code, s string) string {
	if !enabled || s == "" {
		return s
	}
	return code + s + Reset
}

// Strip removes any SGR sequences from s.
func Strip(s string) string {
	if !strings.Contains(s, "\x1b[") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] == ';' || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			if j < len(s) {
				j++ // final byte
			}
			i = j - 1
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
