package layout

import "sync"

// CachedMeasurer memoizes label widths from an inner Measurer.
//
// Widths live in two generations. Lookups hit the current generation first
// and promote hits from the previous one; once the current generation holds
// limit labels it becomes the previous one and the old previous is dropped.
// Labels drawn on every redraw therefore stay cached while callsigns that
// have scrolled out of the spot list age out within two rotations.
type CachedMeasurer struct {
	inner Measurer
	limit int

	mu       sync.Mutex
	current  map[string]float64
	previous map[string]float64
}

// NewCachedMeasurer wraps inner, rotating generations every limit labels.
// Up to 2*limit widths are held at once.
func NewCachedMeasurer(inner Measurer, limit int) *CachedMeasurer {
	limit = max(limit, 1)
	return &CachedMeasurer{
		inner:   inner,
		limit:   limit,
		current: make(map[string]float64, limit),
	}
}

func (c *CachedMeasurer) TextWidth(text string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w, ok := c.current[text]; ok {
		return w
	}
	w, ok := c.previous[text]
	if !ok {
		w = c.inner.TextWidth(text)
	}
	c.store(text, w)
	return w
}

func (c *CachedMeasurer) LineHeight() float64 {
	return c.inner.LineHeight()
}

// cached reports how many widths are held across both generations.
func (c *CachedMeasurer) cached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.current) + len(c.previous)
}

func (c *CachedMeasurer) store(text string, w float64) {
	if len(c.current) >= c.limit {
		c.previous = c.current
		c.current = make(map[string]float64, c.limit)
	}
	c.current[text] = w
}
