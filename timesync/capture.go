package timesync

// DefaultThreshold bounds, in clock ticks, how far apart two back to back
// reads may be for the second one to be trusted.
const DefaultThreshold uint32 = 10

// Sample is a verified clock reading in microseconds.
type Sample uint32

// Capture reads c until two consecutive reads are less than threshold
// apart and returns the second read of that pair. A pair that is too far
// apart, or that goes backwards, is retried with its second read as the new
// first. Callers hold the interrupt mask.
func Capture(c Clock, threshold uint32) Sample {
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	first := c.Now()
	for {
		second := c.Now()
		if second-first < threshold {
			return Sample(second)
		}
		first = second
	}
}
