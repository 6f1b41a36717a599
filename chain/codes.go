package chain

import "fmt"

type Class int

const (
	Accepted Class = iota
	NotAuthorized
	InvalidRequest
	OtherRejection
)

func (c Class) String() string {
	switch c {
	case Accepted:
		return "accepted"
	case NotAuthorized:
		return "not_authorized"
	case InvalidRequest:
		return "invalid_request"
	case OtherRejection:
		return "other_rejection"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Codes maps the deployment's rejection codes onto result classes.
type Codes struct {
	NotAuthorized  uint32 `mapstructure:"not_authorized" json:"not_authorized"`
	InvalidRequest uint32 `mapstructure:"invalid_request" json:"invalid_request"`
}

func DefaultCodes() Codes {
	return Codes{
		NotAuthorized:  1139,
		InvalidRequest: 18,
	}
}

func (c Codes) Classify(code uint32) Class {
	switch {
	case code == 0:
		return Accepted
	case code == c.NotAuthorized:
		return NotAuthorized
	case code == c.InvalidRequest:
		return InvalidRequest
	}
	return OtherRejection
}

func (c Codes) ValidateBasic() error {
	if c.NotAuthorized == 0 || c.InvalidRequest == 0 {
		return fmt.Errorf("rejection codes must be non-zero (not_authorized=%d invalid_request=%d)", c.NotAuthorized, c.InvalidRequest)
	}
	if c.NotAuthorized == c.InvalidRequest {
		return fmt.Errorf("not_authorized and invalid_request share code %d", c.NotAuthorized)
	}
	return nil
}
