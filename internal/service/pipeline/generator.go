package pipeline

import (
	"fmt"
	"sync/atomic"
)

// Generator produces process-unique utterance IDs scoped to a session.
type Generator struct {
	counter uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-utt-%d", sessionId, n)
}
