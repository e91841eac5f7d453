package session

// SessionState is the lifecycle of a transfer session.
type SessionState int

const (
	Negotiating SessionState = iota
	Active
	Completed
	Cancelled
)

func (s SessionState) String() string {
	switch s {
	case Negotiating:
		return "negotiating"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s SessionState) Terminal() bool {
	return s == Completed || s == Cancelled
}

// FileState is the lifecycle of a single file offer.
type FileState int

const (
	Offered FileState = iota
	Rejected
	Authorized
	Receiving
	Verified
	Failed
	FileCancelled
)

func (s FileState) String() string {
	switch s {
	case Offered:
		return "offered"
	case Rejected:
		return "rejected"
	case Authorized:
		return "authorized"
	case Receiving:
		return "receiving"
	case Verified:
		return "verified"
	case Failed:
		return "failed"
	case FileCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal states never transition again.
func (s FileState) Terminal() bool {
	switch s {
	case Rejected, Verified, Failed, FileCancelled:
		return true
	}
	return false
}

// Direction tells whether the peer pushes files to us or pulls them.
type Direction int

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	if d == Download {
		return "download"
	}
	return "upload"
}
