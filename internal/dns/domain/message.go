package domain

import "fmt"

// Message is a DNS message restricted to the sections this server handles:
// header, questions and answers (RFC 1035 §4.1). Authority and additional
// sections are neither produced nor interpreted.
type Message struct {
	Header    Header
	Questions []Question
	Answers   []ResourceRecord
}

// Validate checks that the sections fit their 16-bit counts and that every
// answer record is well formed.
func (m Message) Validate() error {
	if len(m.Questions) > 0xFFFF {
		return fmt.Errorf("too many questions: %d (max 65535)", len(m.Questions))
	}
	if len(m.Answers) > 0xFFFF {
		return fmt.Errorf("too many answer records: %d (max 65535)", len(m.Answers))
	}
	for i, rr := range m.Answers {
		if err := rr.Validate(); err != nil {
			return fmt.Errorf("invalid answer record at index %d: %w", i, err)
		}
	}
	return nil
}
