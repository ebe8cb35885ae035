package frame

// ReceptionState is the state of frame assembly.
type ReceptionState int

const (
	// AwaitingStart discards every byte except the start marker.
	AwaitingStart ReceptionState = iota
	// Accumulating collects the remaining bytes of a frame.
	Accumulating
	// Complete is reported for the byte that finished a frame.
	Complete
)

// String implements fmt.Stringer.
func (s ReceptionState) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting-start"
	case Accumulating:
		return "accumulating"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	State ReceptionState
	Frame *Frame
}

// Parser assembles frames byte by byte.
// There is no timeout on a partial frame: a stalled peer leaves the
// parser accumulating until enough bytes arrive.
type Parser struct {
	state ReceptionState
	buf   [Size]byte
	n     int
}

// State gets the current reception state.
func (p *Parser) State() ReceptionState {
	return p.state
}

// Buffered returns the number of bytes of the partial frame.
func (p *Parser) Buffered() int {
	return p.n
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state, p.n = AwaitingStart, 0
}

// Parse consumes one byte. When the byte completes a frame, the result
// carries the frame with State Complete and the parser is already back
// to AwaitingStart.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case AwaitingStart:
		if b == StartMarker {
			p.buf[0], p.n = b, 1
			p.state = Accumulating
		}
	case Accumulating:
		p.buf[p.n] = b
		p.n++
		if p.n == Size {
			f, _ := Decode(p.buf[:])
			p.Reset()
			return ParseResult{State: Complete, Frame: &f}
		}
	}
	pr.State = p.state
	return
}
