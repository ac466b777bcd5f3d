package indexer

import (
	"fmt"
	"strings"
)

// progress is the shared counter for (courses + assignments + files)
// processed so far. The rendered bar is cosmetic and never part of the
// durable state; the total grows as per-course item counts become known.
type progress struct {
	done  int
	total int
}

func (p *progress) addTotal(n int) {
	p.total += n
}

func (p *progress) increment() {
	p.done++
}

// bar renders a fixed-width textual progress bar like "[#####-----] 12/24".
func (p *progress) bar() string {
	const width = 20
	filled := 0
	if p.total > 0 {
		filled = p.done * width / p.total
		if filled > width {
			filled = width
		}
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat("#", filled),
		strings.Repeat("-", width-filled),
		p.done, p.total)
}
