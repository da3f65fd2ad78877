// Package session implements the per-endpoint USP SessionContext (TR-369
// §5.2): sequence-id tracking and a bounded retransmit buffer. Neither MTP
// creates a Context: the MQTT MTP reads a SessionContext record's first
// payload segment and answers with a NoSessionContext record, with no
// sequence tracking or retransmission.
package session

const retransmitBufLimit = 256

type bufEntry struct {
	seq     uint64
	payload []byte
}

// Context tracks one connected endpoint's session state.
type Context struct {
	SessionID uint64

	// NextSeq is the sequence_id that will be stamped on the next
	// outgoing record.
	NextSeq uint64

	// ExpectedID is the sequence_id we have told the remote we expect —
	// i.e. we have received all records up to ExpectedID-1.
	ExpectedID uint64

	retransmitBuf []bufEntry
}

// New starts a fresh session with sequence numbering beginning at 1.
func New(sessionID uint64) *Context {
	return &Context{
		SessionID:  sessionID,
		NextSeq:    1,
		ExpectedID: 1,
	}
}

// NextSequenceID allocates the next outgoing sequence_id and buffers the
// raw record bytes for possible retransmission. The buffer retains at most
// the last 256 records.
func (c *Context) NextSequenceID(payload []byte) uint64 {
	seq := c.NextSeq
	c.NextSeq++
	c.retransmitBuf = append(c.retransmitBuf, bufEntry{seq: seq, payload: payload})
	if len(c.retransmitBuf) > retransmitBufLimit {
		c.retransmitBuf = c.retransmitBuf[1:]
	}
	return seq
}

// AdvanceExpected moves ExpectedID forward when records arrive in order.
func (c *Context) AdvanceExpected() {
	c.ExpectedID++
}

// Retransmit returns the buffered bytes for seqID, if still held.
func (c *Context) Retransmit(seqID uint64) ([]byte, bool) {
	for _, e := range c.retransmitBuf {
		if e.seq == seqID {
			return e.payload, true
		}
	}
	return nil, false
}
