package ipc

import "strings"

// Request is a parsed command line: the first whitespace-separated token
// is Name, the remainder (if any) is Arg.
type Request struct {
	Name     string
	Arg      string
	ClientFD int
}

// ParseLine splits a raw (already validated, newline-stripped) command
// line into a Request.
func ParseLine(cmd Command) Request {
	line := strings.TrimSpace(cmd.Line)
	name, arg, _ := strings.Cut(line, " ")
	return Request{Name: name, Arg: strings.TrimSpace(arg), ClientFD: cmd.ClientFD}
}
