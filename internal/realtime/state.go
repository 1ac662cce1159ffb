package realtime

type State int

const (
	Connecting State = iota
	Open
	Closed
	Error
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Error:
		return "error"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type eventKind int

const (
	eventOpenRequested eventKind = iota
	eventCloseRequested
	eventDialSucceeded
	eventDialFailed
	eventConnectionLost
	eventRetryDue
	eventMessage
)

func (k eventKind) String() string {
	switch k {
	case eventOpenRequested:
		return "open_requested"
	case eventCloseRequested:
		return "close_requested"
	case eventDialSucceeded:
		return "dial_succeeded"
	case eventDialFailed:
		return "dial_failed"
	case eventConnectionLost:
		return "connection_lost"
	case eventRetryDue:
		return "retry_due"
	case eventMessage:
		return "message"
	}
	return "unknown"
}

type effect int

const (
	effectDial effect = iota
	effectAdoptConn
	effectDiscardConn
	effectCloseConn
	effectScheduleRetry
	effectCancelRetry
	effectReportExhausted
)

// machine is the connection state of one channel.  It is a value type: next never
// mutates the receiver, and the caller applies the returned effects in order.
type machine struct {
	state       State
	attempts    int
	maxAttempts int
}

func newMachine(maxAttempts int) machine {
	return machine{state: Closed, maxAttempts: maxAttempts}
}

func (m machine) next(kind eventKind) (machine, []effect) {
	switch kind {
	case eventOpenRequested:
		switch m.state {
		case Closed, Error:
			m.state = Connecting
			m.attempts = 0
			return m, []effect{effectCancelRetry, effectDial}
		}
		return m, nil

	case eventCloseRequested:
		if m.state == Closed {
			return m, nil
		}
		m.state = Closed
		return m, []effect{effectCancelRetry, effectCloseConn}

	case eventDialSucceeded:
		if m.state != Connecting {
			return m, []effect{effectDiscardConn}
		}
		m.state = Open
		m.attempts = 0
		return m, []effect{effectAdoptConn}

	case eventDialFailed:
		if m.state != Connecting {
			return m, nil
		}
		return m.fail(nil)

	case eventConnectionLost:
		if m.state != Open {
			return m, nil
		}
		return m.fail([]effect{effectCloseConn})

	case eventRetryDue:
		if m.state != Error {
			return m, nil
		}
		m.state = Connecting
		return m, []effect{effectDial}
	}

	return m, nil
}

// fail moves to Error and either schedules the next attempt or goes dormant.
func (m machine) fail(effects []effect) (machine, []effect) {
	m.state = Error

	if ShouldReconnect(m.attempts, m.maxAttempts) {
		m.attempts++
		return m, append(effects, effectScheduleRetry)
	}

	m.state = Closed
	return m, append(effects, effectReportExhausted)
}
