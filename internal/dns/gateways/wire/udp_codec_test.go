package wire

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"

	"github.com/haukened/rr-fwd/internal/dns/common/log"
	"github.com/haukened/rr-fwd/internal/dns/domain"
)

func newTestCodec() *udpCodec {
	return NewUDPCodec(log.NewNoopLogger())
}

func TestUDPCodec_EncodeForwardedAnswer(t *testing.T) {
	codec := newTestCodec()
	answer, err := domain.NewARecord("codecrafters.io", 60, netip.MustParseAddr("8.8.8.8"))
	require.NoError(t, err)

	msg := domain.Message{
		Header: domain.NewHeader(domain.HeaderOptions{
			ID:               1234,
			Response:         true,
			RecursionDesired: true,
		}),
		Questions: []domain.Question{{Name: "codecrafters.io", Type: domain.RRTypeA, Class: domain.RRClassIN}},
		Answers:   []domain.ResourceRecord{answer},
	}

	got, err := codec.EncodeMessage(msg)
	require.NoError(t, err)

	name := mustEncodeName(t, "codecrafters.io")
	want := []byte{0x04, 0xD2, 0x81, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	want = append(want, name...)
	want = append(want, 0x00, 0x01, 0x00, 0x01)
	want = append(want, name...)
	want = append(want, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x3C, 0x00, 0x04, 8, 8, 8, 8)
	assert.Equal(t, want, got)
}

func TestUDPCodec_EncodeRecomputesCounts(t *testing.T) {
	codec := newTestCodec()
	msg := domain.Message{
		Header: domain.NewHeader(domain.HeaderOptions{
			ID:              7,
			QuestionCount:   9,
			AnswerCount:     9,
			AuthorityCount:  3,
			AdditionalCount: 4,
		}),
		Questions: []domain.Question{{Name: "example.com", Type: domain.RRTypeA, Class: domain.RRClassIN}},
	}

	got, err := codec.EncodeMessage(msg)
	require.NoError(t, err)

	h, _, err := DecodeHeader(got, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), h.QDCount)
	assert.Equal(t, uint16(0), h.ANCount)
	assert.Equal(t, uint16(0), h.NSCount)
	assert.Equal(t, uint16(0), h.ARCount)
}

func TestUDPCodec_EncodeInvalidAnswer(t *testing.T) {
	codec := newTestCodec()
	msg := domain.Message{
		Questions: []domain.Question{{Name: "example.com", Type: domain.RRTypeA, Class: domain.RRClassIN}},
		Answers: []domain.ResourceRecord{
			{Name: "example.com", Type: domain.RRTypeA, Class: domain.RRClassIN, Data: []byte{1, 2}},
		},
	}

	got, err := codec.EncodeMessage(msg)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "invalid answer record at index 0")
}

func TestUDPCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec()
	a1, err := domain.NewARecord("a.example.com", 60, netip.MustParseAddr("192.0.2.1"))
	require.NoError(t, err)
	a2, err := domain.NewARecord("b.example.com", 120, netip.MustParseAddr("192.0.2.2"))
	require.NoError(t, err)

	msg := domain.Message{
		Header: domain.NewHeader(domain.HeaderOptions{
			ID:                 0xBEEF,
			Response:           true,
			RecursionDesired:   true,
			RecursionAvailable: true,
			QuestionCount:      2,
			AnswerCount:        2,
		}),
		Questions: []domain.Question{
			{Name: "a.example.com", Type: domain.RRTypeA, Class: domain.RRClassIN},
			{Name: "b.example.com", Type: domain.RRTypeA, Class: domain.RRClassIN},
		},
		Answers: []domain.ResourceRecord{a1, a2},
	}

	encoded, err := codec.EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err := codec.DecodeMessage(encoded)
	require.NoError(t, err)
	assert.Equal(t, msg.Header, decoded.Header)
	assert.Equal(t, msg.Questions, decoded.Questions)
	assert.Equal(t, msg.Answers, decoded.Answers)
}

// The encoder's output must be readable by an independent RFC 1035 parser.
func TestUDPCodec_EncodeParsesWithDNSMessage(t *testing.T) {
	codec := newTestCodec()
	answer, err := domain.NewARecord("abc.longassdomainname.com", 300, netip.MustParseAddr("203.0.113.7"))
	require.NoError(t, err)

	msg := domain.Message{
		Header: domain.NewHeader(domain.HeaderOptions{
			ID:                 0x4242,
			Response:           true,
			Opcode:             domain.OpCodeQuery,
			RecursionDesired:   true,
			RecursionAvailable: true,
			RCode:              domain.RCodeNoError,
		}),
		Questions: []domain.Question{
			{Name: "abc.longassdomainname.com", Type: domain.RRTypeA, Class: domain.RRClassIN},
			{Name: "def.longassdomainname.com", Type: domain.RRTypeA, Class: domain.RRClassIN},
		},
		Answers: []domain.ResourceRecord{answer},
	}

	encoded, err := codec.EncodeMessage(msg)
	require.NoError(t, err)

	var p dnsmessage.Parser
	h, err := p.Start(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x4242), h.ID)
	assert.True(t, h.Response)
	assert.True(t, h.RecursionDesired)
	assert.True(t, h.RecursionAvailable)
	assert.Equal(t, dnsmessage.RCodeSuccess, h.RCode)

	questions, err := p.AllQuestions()
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "abc.longassdomainname.com.", questions[0].Name.String())
	assert.Equal(t, "def.longassdomainname.com.", questions[1].Name.String())
	assert.Equal(t, dnsmessage.TypeA, questions[1].Type)
	assert.Equal(t, dnsmessage.ClassINET, questions[1].Class)

	answers, err := p.AllAnswers()
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, uint32(300), answers[0].Header.TTL)
	body, ok := answers[0].Body.(*dnsmessage.AResource)
	require.True(t, ok)
	assert.Equal(t, [4]byte{203, 0, 113, 7}, body.A)
}

// Compressed messages produced by an independent builder must decode.
func TestUDPCodec_DecodeCompressedFromDNSMessage(t *testing.T) {
	codec := newTestCodec()

	b := dnsmessage.NewBuilder(make([]byte, 0, 512), dnsmessage.Header{
		ID:                 0x0101,
		Response:           true,
		RecursionDesired:   true,
		RecursionAvailable: true,
	})
	b.EnableCompression()
	require.NoError(t, b.StartQuestions())
	for _, n := range []string{"example.com.", "www.example.com.", "api.www.example.com."} {
		require.NoError(t, b.Question(dnsmessage.Question{
			Name:  dnsmessage.MustNewName(n),
			Type:  dnsmessage.TypeA,
			Class: dnsmessage.ClassINET,
		}))
	}
	require.NoError(t, b.StartAnswers())
	require.NoError(t, b.AResource(dnsmessage.ResourceHeader{
		Name:  dnsmessage.MustNewName("www.example.com."),
		Class: dnsmessage.ClassINET,
		TTL:   60,
	}, dnsmessage.AResource{A: [4]byte{93, 184, 216, 34}}))
	require.NoError(t, b.StartAdditionals())
	require.NoError(t, b.AResource(dnsmessage.ResourceHeader{
		Name:  dnsmessage.MustNewName("ns.example.com."),
		Class: dnsmessage.ClassINET,
		TTL:   60,
	}, dnsmessage.AResource{A: [4]byte{192, 0, 2, 53}}))
	raw, err := b.Finish()
	require.NoError(t, err)

	msg, err := codec.DecodeMessage(raw)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x0101), msg.Header.ID)
	assert.True(t, msg.Header.QR)
	assert.Equal(t, uint16(1), msg.Header.ARCount)
	require.Len(t, msg.Questions, 3)
	assert.Equal(t, "example.com", msg.Questions[0].Name)
	assert.Equal(t, "www.example.com", msg.Questions[1].Name)
	assert.Equal(t, "api.www.example.com", msg.Questions[2].Name)

	require.Len(t, msg.Answers, 1)
	assert.Equal(t, "www.example.com", msg.Answers[0].Name)
	assert.Equal(t, uint32(60), msg.Answers[0].TTL)
	assert.Equal(t, []byte{93, 184, 216, 34}, msg.Answers[0].Data)
	assert.Equal(t, "93.184.216.34", msg.Answers[0].Text)
}

func TestUDPCodec_DecodeErrors(t *testing.T) {
	codec := newTestCodec()
	query := func(qd, an uint16) []byte {
		return EncodeHeader(domain.NewHeader(domain.HeaderOptions{ID: 1, QuestionCount: qd, AnswerCount: an}))
	}
	question, err := EncodeQuestion(domain.Question{Name: "example.com", Type: domain.RRTypeA, Class: domain.RRClassIN})
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
		wantMsg string
	}{
		{
			name:    "empty",
			data:    nil,
			wantErr: ErrTruncatedMessage,
		},
		{
			name:    "short header",
			data:    []byte{0x12, 0x34, 0x01},
			wantErr: ErrTruncatedMessage,
		},
		{
			name:    "question count without questions",
			data:    query(1, 0),
			wantErr: ErrTruncatedMessage,
			wantMsg: "failed to parse question 0",
		},
		{
			name:    "huge question count",
			data:    query(0xFFFF, 0),
			wantErr: ErrTruncatedMessage,
		},
		{
			name:    "answer count without answers",
			data:    append(query(1, 1), question...),
			wantErr: ErrTruncatedMessage,
			wantMsg: "failed to parse answer record 0",
		},
		{
			name:    "self pointer in question",
			data:    append(query(1, 0), 0xC0, 0x0C, 0x00, 0x01, 0x00, 0x01),
			wantErr: ErrMalformedName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.DecodeMessage(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestUDPCodec_DecodeHeaderOnly(t *testing.T) {
	codec := newTestCodec()
	raw := EncodeHeader(domain.NewHeader(domain.HeaderOptions{ID: 99, RecursionDesired: true}))

	msg, err := codec.DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(99), msg.Header.ID)
	assert.Empty(t, msg.Questions)
	assert.Empty(t, msg.Answers)
}
