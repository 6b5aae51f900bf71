package forwarder

import (
	"net"
	"time"

	"github.com/haukened/rr-fwd/internal/dns/common/utils"
	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// pendingRequest is one client query waiting for its upstream replies.
// answers and answered are indexed by question position; each answer slot
// holds the records selected for that question.
type pendingRequest struct {
	seq       uint64
	client    net.Addr
	header    domain.Header
	questions []domain.Question
	ids       []uint16
	answers   [][]domain.ResourceRecord
	answered  []bool
	remaining int
	rcode     domain.RCode // first non-zero upstream RCODE
	deadline  time.Time
}

func newPendingRequest(seq uint64, client net.Addr, msg domain.Message, deadline time.Time) *pendingRequest {
	n := len(msg.Questions)
	return &pendingRequest{
		seq:       seq,
		client:    client,
		header:    msg.Header,
		questions: msg.Questions,
		ids:       make([]uint16, 0, n),
		answers:   make([][]domain.ResourceRecord, n),
		answered:  make([]bool, n),
		remaining: n,
		deadline:  deadline,
	}
}

// record stores the reply for question i. A second reply for the same
// question is ignored. It reports whether the reply was accepted.
func (p *pendingRequest) record(i int, reply domain.Message) bool {
	if i < 0 || i >= len(p.questions) || p.answered[i] {
		return false
	}
	p.answers[i] = answerChain(p.questions[i], reply)
	if reply.Header.RCode != domain.RCodeNoError && p.rcode == domain.RCodeNoError {
		p.rcode = reply.Header.RCode
	}
	p.answered[i] = true
	p.remaining--
	return true
}

// matches reports whether reply is about question i. A reply without a
// question section is accepted, and so is an index record will reject.
func (p *pendingRequest) matches(i int, reply domain.Message) bool {
	if i < 0 || i >= len(p.questions) || len(reply.Questions) == 0 {
		return true
	}
	want, got := p.questions[i], reply.Questions[0]
	return got.Type == want.Type && got.Class == want.Class && utils.SameDNSName(got.Name, want.Name)
}

func (p *pendingRequest) complete() bool {
	return p.remaining == 0
}

func (p *pendingRequest) expired(now time.Time) bool {
	return now.After(p.deadline)
}

// response assembles the final message: answers in question order and
// RCODE NOERROR when any answer arrived, else the first upstream error.
func (p *pendingRequest) response() domain.Message {
	answers := make([]domain.ResourceRecord, 0, len(p.answers))
	for _, chain := range p.answers {
		answers = append(answers, chain...)
	}
	rcode := domain.RCodeNoError
	if len(answers) == 0 {
		rcode = p.rcode
	}
	return domain.Message{
		Header:    responseHeader(p.header, rcode, len(p.questions), len(answers)),
		Questions: p.questions,
		Answers:   answers,
	}
}

// failure answers every question with rcode and no records.
func (p *pendingRequest) failure(rcode domain.RCode) domain.Message {
	return domain.Message{
		Header:    responseHeader(p.header, rcode, len(p.questions), 0),
		Questions: p.questions,
	}
}

// maxCNAMEHops bounds the alias chain followed within one reply.
const maxCNAMEHops = 8

// answerChain returns the records that answer q: any CNAME records leading
// from the question name to an alias, then the first record of the question
// type owned by the final name. Nothing is returned when the chain never
// reaches a record of that type, so every returned record is reachable from
// the question name. A decoded CNAME carries its target in Text.
func answerChain(q domain.Question, reply domain.Message) []domain.ResourceRecord {
	var chain []domain.ResourceRecord
	owner := q.Name
	for hop := 0; hop <= maxCNAMEHops; hop++ {
		if rr, ok := findRecord(reply.Answers, owner, q.Type); ok {
			return append(chain, rr)
		}
		cname, ok := findRecord(reply.Answers, owner, domain.RRTypeCNAME)
		if !ok || cname.Text == "" {
			return nil
		}
		chain = append(chain, cname)
		owner = cname.Text
	}
	return nil
}

func findRecord(records []domain.ResourceRecord, owner string, rrtype domain.RRType) (domain.ResourceRecord, bool) {
	for _, rr := range records {
		if rr.Type == rrtype && utils.SameDNSName(rr.Name, owner) {
			return rr, true
		}
	}
	return domain.ResourceRecord{}, false
}

// responseHeader builds a response to request: same ID, opcode and RD echoed,
// every other flag clear.
func responseHeader(request domain.Header, rcode domain.RCode, questions, answers int) domain.Header {
	//gosec:disable G115 -- section sizes come from a decoded message and fit 16 bits.
	return domain.NewHeader(domain.HeaderOptions{
		ID:               request.ID,
		Response:         true,
		Opcode:           request.Opcode,
		RecursionDesired: request.RD,
		RCode:            rcode,
		QuestionCount:    uint16(questions),
		AnswerCount:      uint16(answers),
	})
}
