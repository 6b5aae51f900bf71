package domain

import "fmt"

// MaxNameLength is the longest presentation-form name (without trailing dot)
// that fits the 255-byte wire limit.
const MaxNameLength = 253

// Question is one entry of the question section: the name being asked about,
// the record type and the class. The message identifier lives in the Header.
type Question struct {
	Name  string
	Type  RRType
	Class RRClass
}

// String renders the question the way dig prints it.
func (q Question) String() string {
	return fmt.Sprintf("%s %s %s", q.Name, q.Class, q.Type)
}
