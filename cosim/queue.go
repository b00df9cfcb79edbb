// Implements the FrameQueue, which holds frames that have arrived from the
// scenario but have not yet been admitted by the co-simulation clock rule.

package cosim

// FrameQueue represents a FIFO queue of frames waiting to be admitted for
// processing. In the co-simulation this models the backlog that builds up
// whenever the emulated pipeline (T_proc) falls behind signal arrival
// (T_sim).
type FrameQueue struct {
	queue []*Frame // FIFO queue of frames
}

// Enqueue adds a frame to the back of the queue.
func (fq *FrameQueue) Enqueue(f *Frame) {
	fq.queue = append(fq.queue, f)
}

// Len returns the number of frames in the queue.
func (fq *FrameQueue) Len() int {
	return len(fq.queue)
}

// Peek returns the frame at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (fq *FrameQueue) Peek() *Frame {
	if len(fq.queue) == 0 {
		return nil
	}
	return fq.queue[0]
}

// Dequeue removes and returns the frame at the front of the queue.
// Returns nil if the queue is empty.
func (fq *FrameQueue) Dequeue() *Frame {
	if len(fq.queue) == 0 {
		return nil
	}
	f := fq.queue[0]
	fq.queue = fq.queue[1:]
	return f
}
