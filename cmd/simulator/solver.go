package main

import (
	"math/rand/v2"
	"strconv"

	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/session"
)

// allCodes lists every valid code of length n.
func allCodes(n int) []string {
	var out []string
	var build func(prefix string, used [10]bool)
	build = func(prefix string, used [10]bool) {
		if len(prefix) == n {
			out = append(out, prefix)
			return
		}
		for d := 0; d < 10; d++ {
			if used[d] {
				continue
			}
			used[d] = true
			build(prefix+strconv.Itoa(d), used)
			used[d] = false
		}
	}
	build("", [10]bool{})
	return out
}

// candidates keeps the codes consistent with every scored move.
func candidates(codes []string, moves []session.BoardMove) []string {
	out := make([]string, 0, len(codes))
next:
	for _, c := range codes {
		for _, m := range moves {
			if m.Timeout || m.Bulls == nil {
				continue
			}
			if domain.Score(m.Guess, c) != *m.Bulls {
				continue next
			}
		}
		out = append(out, c)
	}
	return out
}

func randomCode(codes []string) string {
	return codes[rand.IntN(len(codes))]
}
