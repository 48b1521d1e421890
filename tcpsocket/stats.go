package tcpsocket

import "sync/atomic"

// Stats is a snapshot of a socket's traffic counters.
type Stats struct {
	BytesSent       uint64
	BytesReceived   uint64
	MessagesSent    uint64
	MessagesFailed  uint64
	BuffersReceived uint64
	MessagesInQueue int
}

type stats struct {
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	messagesSent    atomic.Uint64
	messagesFailed  atomic.Uint64
	buffersReceived atomic.Uint64
}

func (st *stats) sent(n int) {
	st.bytesSent.Add(uint64(n))
	st.messagesSent.Add(1)
}

func (st *stats) failed() { st.messagesFailed.Add(1) }

func (st *stats) received(n int) {
	st.bytesReceived.Add(uint64(n))
	st.buffersReceived.Add(1)
}

func (s *Socket) Stats() Stats {
	return Stats{
		BytesSent:       s.stats.bytesSent.Load(),
		BytesReceived:   s.stats.bytesReceived.Load(),
		MessagesSent:    s.stats.messagesSent.Load(),
		MessagesFailed:  s.stats.messagesFailed.Load(),
		BuffersReceived: s.stats.buffersReceived.Load(),
		MessagesInQueue: s.queue.len(),
	}
}
