package collector

// Outcome is the classification of one delivery attempt.
type Outcome int

const (
	Success Outcome = iota
	BadRequest
	AuthRejected
	DuplicateReject
	Transient
	WeirdStatus
)

// Classify maps a status code, or a transport error, to an Outcome.
// A non-nil err always means Transient; status is ignored in that case.
func Classify(status int, err error) Outcome {
	switch {
	case err != nil:
		return Transient
	case status < 200 || status > 599:
		return WeirdStatus
	case status <= 299:
		return Success
	case status == 400:
		return BadRequest
	case status == 403:
		return AuthRejected
	case status == 409:
		return DuplicateReject
	default:
		return Transient
	}
}

// Drops reports whether the bundle's records leave the queue.
func (o Outcome) Drops() bool {
	switch o {
	case Success, BadRequest, AuthRejected, DuplicateReject:
		return true
	}
	return false
}

// ResetsBackoff is true exactly when the records are dropped; retained records back off.
func (o Outcome) ResetsBackoff() bool {
	return o.Drops()
}

// Reports reports whether the error sink hears about the outcome.
func (o Outcome) Reports() bool {
	return o == BadRequest || o == AuthRejected
}

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case BadRequest:
		return "bad_request"
	case AuthRejected:
		return "auth_rejected"
	case DuplicateReject:
		return "duplicate_reject"
	case Transient:
		return "transient"
	case WeirdStatus:
		return "weird_status"
	default:
		return "unknown"
	}
}
