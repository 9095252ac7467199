package utils

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of price points.
// Appending to a full buffer overwrites the oldest point.
// -----------------------------------------------------------------------------

type RingBuffer struct {
	data     []float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}

	return &RingBuffer{
		data:     make([]float64, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// NewRingBufferFrom creates a buffer holding the newest capacity points of history.
func NewRingBufferFrom(capacity int, history []float64) *RingBuffer {
	rb := NewRingBuffer(capacity)
	for _, p := range history {
		rb.Append(p)
	}
	return rb
}

// -----------------------------------------------------------------------------

// Append adds a point, dropping the oldest one when full
func (rb *RingBuffer) Append(point float64) {
	rb.data[rb.index] = point
	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n newest points, oldest first
func (rb *RingBuffer) GetLatest(n int) []float64 {
	if rb.size == 0 || n <= 0 {
		return []float64{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]float64, count)

	// Latest data is at index-1
	startIdx := (rb.index - count + rb.capacity) % rb.capacity
	for i := 0; i < count; i++ {
		result[i] = rb.data[(startIdx+i)%rb.capacity]
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (rb *RingBuffer) GetAll() []float64 {
	return rb.GetLatest(rb.size)
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (rb *RingBuffer) IsFull() bool {
	return rb.size == rb.capacity
}
