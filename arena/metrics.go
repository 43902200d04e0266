package arena

// Metrics contains statistical information about an arena.
type Metrics struct {
	SizeInUse   int     `json:"sizeInUse"`   // Bytes currently allocated
	Capacity    int     `json:"capacity"`    // Total capacity in bytes
	Peak        int     `json:"peak"`        // High-water mark since creation
	Utilization float64 `json:"utilization"` // Ratio of used to total capacity (0.0-1.0)
}

// Metrics returns a snapshot of arena statistics.
func (a *Arena) Metrics() Metrics {
	m := Metrics{
		SizeInUse: a.index,
		Capacity:  len(a.buf),
		Peak:      a.peak,
	}
	if m.Capacity > 0 {
		m.Utilization = float64(m.SizeInUse) / float64(m.Capacity)
	}
	return m
}
