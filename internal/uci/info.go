package uci

import (
	"strconv"
	"strings"
	"time"
)

// Score is an engine score from the side to move's point of view.
type Score struct {
	// Mate is set when Value counts moves to mate instead of centipawns.
	// Negative values mean the side to move is getting mated.
	Mate  bool
	Value int

	Lowerbound bool
	Upperbound bool
}

// Info is one parsed "info" line.
type Info struct {
	Depth    int
	SelDepth int
	MultiPV  int
	Score    Score
	HasScore bool
	Nodes    uint64
	NPS      uint64
	Time     time.Duration
	HashFull int
	PV       []string
}

// ParseInfo parses an "info" line. It reports false for lines that are not
// search info, including "info string" messages.
func ParseInfo(line string) (Info, bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "info" || parts[1] == "string" {
		return Info{}, false
	}

	var info Info
	args := parts[1:]
	num := func(i int) int {
		if i >= len(args) {
			return 0
		}
		n, _ := strconv.Atoi(args[i])
		return n
	}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			info.Depth = num(i + 1)
			i++
		case "seldepth":
			info.SelDepth = num(i + 1)
			i++
		case "multipv":
			info.MultiPV = num(i + 1)
			i++
		case "nodes":
			info.Nodes = uint64(num(i + 1))
			i++
		case "nps":
			info.NPS = uint64(num(i + 1))
			i++
		case "time":
			info.Time = time.Duration(num(i+1)) * time.Millisecond
			i++
		case "hashfull":
			info.HashFull = num(i + 1)
			i++
		case "score":
			if i+2 >= len(args) {
				return info, true
			}
			switch args[i+1] {
			case "cp":
				info.HasScore = true
			case "mate":
				info.HasScore = true
				info.Score.Mate = true
			}
			info.Score.Value = num(i + 2)
			i += 2
			for i+1 < len(args) {
				if args[i+1] == "lowerbound" {
					info.Score.Lowerbound = true
				} else if args[i+1] == "upperbound" {
					info.Score.Upperbound = true
				} else {
					break
				}
				i++
			}
		case "pv":
			// pv runs to the end of the line
			info.PV = append([]string(nil), args[i+1:]...)
			return info, true
		}
	}
	return info, true
}
