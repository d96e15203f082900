package uci

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GoOptions holds the limits of a "go" command.
type GoOptions struct {
	Depth     int
	Nodes     uint64
	MoveTime  time.Duration
	Infinite  bool
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
}

// String formats the arguments of the "go" command, without the command
// itself.
func (o GoOptions) String() string {
	if o.Infinite {
		return "infinite"
	}
	var parts []string
	if o.Depth > 0 {
		parts = append(parts, fmt.Sprintf("depth %d", o.Depth))
	}
	if o.Nodes > 0 {
		parts = append(parts, fmt.Sprintf("nodes %d", o.Nodes))
	}
	if o.MoveTime > 0 {
		parts = append(parts, fmt.Sprintf("movetime %d", o.MoveTime.Milliseconds()))
	}
	if o.WTime > 0 {
		parts = append(parts, fmt.Sprintf("wtime %d", o.WTime.Milliseconds()))
	}
	if o.BTime > 0 {
		parts = append(parts, fmt.Sprintf("btime %d", o.BTime.Milliseconds()))
	}
	if o.WInc > 0 {
		parts = append(parts, fmt.Sprintf("winc %d", o.WInc.Milliseconds()))
	}
	if o.BInc > 0 {
		parts = append(parts, fmt.Sprintf("binc %d", o.BInc.Milliseconds()))
	}
	if o.MovesToGo > 0 {
		parts = append(parts, fmt.Sprintf("movestogo %d", o.MovesToGo))
	}
	return strings.Join(parts, " ")
}

// ParseGoOptions parses "go" command arguments such as "depth 16" or
// "movetime 500". Unknown tokens are ignored.
func ParseGoOptions(s string) GoOptions {
	args := strings.Fields(s)
	opts := GoOptions{}

	ms := func(i int) time.Duration {
		n, _ := strconv.Atoi(args[i])
		return time.Duration(n) * time.Millisecond
	}
	for i := 0; i < len(args); i++ {
		hasArg := i+1 < len(args)
		switch args[i] {
		case "depth":
			if hasArg {
				opts.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if hasArg {
				opts.Nodes, _ = strconv.ParseUint(args[i+1], 10, 64)
				i++
			}
		case "movetime":
			if hasArg {
				opts.MoveTime = ms(i + 1)
				i++
			}
		case "infinite":
			opts.Infinite = true
		case "wtime":
			if hasArg {
				opts.WTime = ms(i + 1)
				i++
			}
		case "btime":
			if hasArg {
				opts.BTime = ms(i + 1)
				i++
			}
		case "winc":
			if hasArg {
				opts.WInc = ms(i + 1)
				i++
			}
		case "binc":
			if hasArg {
				opts.BInc = ms(i + 1)
				i++
			}
		case "movestogo":
			if hasArg {
				opts.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		}
	}
	return opts
}

// Option is an option the engine advertised during the handshake.
type Option struct {
	Name    string
	Type    string
	Default string
}

// parseOption parses the arguments of an "option" line:
// name <name> type <type> [default <value>] [min ..] [max ..] [var ..].
func parseOption(args []string) Option {
	var opt Option
	field := ""
	for _, arg := range args {
		switch arg {
		case "name", "type", "default", "min", "max", "var":
			field = arg
			continue
		}
		switch field {
		case "name":
			opt.Name = join(opt.Name, arg)
		case "type":
			opt.Type = arg
		case "default":
			opt.Default = join(opt.Default, arg)
		}
	}
	if opt.Default == "<empty>" {
		opt.Default = ""
	}
	return opt
}

func join(s, word string) string {
	if s == "" {
		return word
	}
	return s + " " + word
}
