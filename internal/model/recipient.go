// internal/model/recipient.go
package model

// Recipient is one delivery target inside a campaign roster. Sent is the
// resumability flag: once true the record has been processed, successfully or
// not, and is never revisited.
type Recipient struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Sent      bool   `json:"sent"`
}

// Identifier returns the value used in the failure log, preferring email.
func (r Recipient) Identifier() string {
	if r.Email != "" {
		return r.Email
	}
	if r.Phone != "" {
		return r.Phone
	}
	return r.FirstName + " " + r.LastName
}
