package timesync

import (
	"sync"

	"github.com/rigado/hciuart"
)

// Line is one digital output.
type Line interface {
	Set(high bool)
	Toggle()
}

// LogLine is an output line for hosts without GPIO: it keeps the level and
// logs each edge.
type LogLine struct {
	name string
	log  hciuart.Logger

	mu    sync.Mutex
	level bool
	edges uint64
}

func NewLogLine(name string, l hciuart.Logger) *LogLine {
	return &LogLine{
		name: name,
		log:  hciuart.ComponentLogger(l, "gpio").ChildLogger(map[string]interface{}{"line": name}),
	}
}

func (g *LogLine) Set(high bool) {
	g.mu.Lock()
	changed := g.level != high
	g.level = high
	if changed {
		g.edges++
	}
	g.mu.Unlock()

	if changed {
		g.log.Debugf("level %v", high)
	}
}

func (g *LogLine) Toggle() {
	g.mu.Lock()
	g.level = !g.level
	g.edges++
	high := g.level
	g.mu.Unlock()

	g.log.Debugf("toggle -> %v", high)
}

func (g *LogLine) Level() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level
}

// Edges counts level changes.
func (g *LogLine) Edges() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.edges
}
