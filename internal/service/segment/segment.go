package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator hands out process-unique segment ids.
type Generator struct {
	counter uint64
}

func New() *Generator {
	return &Generator{}
}

// Next returns "<guildID>-<userID>-seg-<n>".
func (g *Generator) Next(guildID, userID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-%s-seg-%d", guildID, userID, n)
}
