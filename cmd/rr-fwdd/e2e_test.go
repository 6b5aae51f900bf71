package main

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"
)

// fakeResolver answers A queries from a fixed table over loopback UDP.
// Names mapped to NXDOMAIN get an error reply and unknown names are ignored.
type fakeResolver struct {
	conn    net.PacketConn
	answers map[string][4]byte
	nx      map[string]bool

	mu      sync.Mutex
	queries []dnsmessage.Header
}

func startFakeResolver(t *testing.T, answers map[string][4]byte, nx ...string) *fakeResolver {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	r := &fakeResolver{conn: conn, answers: answers, nx: map[string]bool{}}
	for _, n := range nx {
		r.nx[n] = true
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.serve()
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})
	return r
}

func (r *fakeResolver) addr() string {
	return r.conn.LocalAddr().String()
}

func (r *fakeResolver) seen() []dnsmessage.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dnsmessage.Header(nil), r.queries...)
}

func (r *fakeResolver) serve() {
	buf := make([]byte, 512)
	for {
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		var p dnsmessage.Parser
		hdr, err := p.Start(buf[:n])
		if err != nil {
			continue
		}
		q, err := p.Question()
		if err != nil {
			continue
		}
		r.mu.Lock()
		r.queries = append(r.queries, hdr)
		r.mu.Unlock()

		name := q.Name.String()
		ip, ok := r.answers[name]
		if !ok && !r.nx[name] {
			continue
		}
		resp := dnsmessage.Header{ID: hdr.ID, Response: true, RecursionAvailable: true}
		if !ok {
			resp.RCode = dnsmessage.RCodeNameError
		}
		b := dnsmessage.NewBuilder(nil, resp)
		_ = b.StartQuestions()
		_ = b.Question(q)
		if ok {
			_ = b.StartAnswers()
			_ = b.AResource(dnsmessage.ResourceHeader{Name: q.Name, Class: dnsmessage.ClassINET, TTL: 300}, dnsmessage.AResource{A: ip})
		}
		out, err := b.Finish()
		if err != nil {
			continue
		}
		_, _ = r.conn.WriteTo(out, from)
	}
}

func buildQuery(t *testing.T, hdr dnsmessage.Header, names ...string) []byte {
	t.Helper()
	b := dnsmessage.NewBuilder(nil, hdr)
	require.NoError(t, b.StartQuestions())
	for _, n := range names {
		require.NoError(t, b.Question(dnsmessage.Question{
			Name:  dnsmessage.MustNewName(n),
			Type:  dnsmessage.TypeA,
			Class: dnsmessage.ClassINET,
		}))
	}
	msg, err := b.Finish()
	require.NoError(t, err)
	return msg
}

// exchange sends query to the forwarder and parses its response.
func exchange(t *testing.T, port int, query []byte) (dnsmessage.Message, error) {
	t.Helper()
	conn, err := net.Dial("udp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(3*time.Second)))
	_, err = conn.Write(query)
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return dnsmessage.Message{}, err
	}
	var msg dnsmessage.Message
	require.NoError(t, msg.Unpack(buf[:n]))
	return msg, nil
}

// TestE2E_Forwarding runs the whole process against a fake resolver.
func TestE2E_Forwarding(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	resolver := startFakeResolver(t, map[string][4]byte{
		"codecrafters.io.": {8, 8, 8, 8},
		"api.e2e.test.":    {10, 0, 0, 1},
		"web.e2e.test.":    {10, 0, 0, 2},
		"www.e2e.test.":    {10, 0, 0, 3},
	}, "missing.e2e.test.")

	port := freeUDPPort(t)
	cfg := testConfig(port, resolver.addr())
	cfg.UpstreamTimeout = 300 * time.Millisecond
	cfg.SweepInterval = 20 * time.Millisecond
	app, err := buildApplication(cfg)
	require.NoError(t, err)
	stop := runApp(t, app)

	t.Run("single question", func(t *testing.T) {
		resp, err := exchange(t, port, buildQuery(t, dnsmessage.Header{ID: 0x04D2, RecursionDesired: true}, "codecrafters.io."))
		require.NoError(t, err)

		assert.Equal(t, uint16(0x04D2), resp.Header.ID)
		assert.True(t, resp.Header.Response)
		assert.True(t, resp.Header.RecursionDesired)
		assert.Equal(t, dnsmessage.RCodeSuccess, resp.Header.RCode)
		require.Len(t, resp.Questions, 1)
		require.Len(t, resp.Answers, 1)
		a, ok := resp.Answers[0].Body.(*dnsmessage.AResource)
		require.True(t, ok)
		assert.Equal(t, [4]byte{8, 8, 8, 8}, a.A)
		assert.Equal(t, "codecrafters.io.", resp.Answers[0].Header.Name.String())
	})

	t.Run("multiple questions keep their order", func(t *testing.T) {
		names := []string{"www.e2e.test.", "api.e2e.test.", "web.e2e.test."}
		resp, err := exchange(t, port, buildQuery(t, dnsmessage.Header{ID: 7}, names...))
		require.NoError(t, err)

		assert.Equal(t, uint16(7), resp.Header.ID)
		require.Len(t, resp.Questions, 3)
		require.Len(t, resp.Answers, 3)
		for i, n := range names {
			assert.Equal(t, n, resp.Questions[i].Name.String())
			assert.Equal(t, n, resp.Answers[i].Header.Name.String())
		}
	})

	t.Run("upstream error is propagated", func(t *testing.T) {
		resp, err := exchange(t, port, buildQuery(t, dnsmessage.Header{ID: 8}, "missing.e2e.test."))
		require.NoError(t, err)
		assert.Equal(t, dnsmessage.RCodeNameError, resp.Header.RCode)
		assert.Empty(t, resp.Answers)
	})

	t.Run("unanswered question times out with SERVFAIL", func(t *testing.T) {
		resp, err := exchange(t, port, buildQuery(t, dnsmessage.Header{ID: 9}, "api.e2e.test.", "silent.e2e.test."))
		require.NoError(t, err)
		assert.Equal(t, uint16(9), resp.Header.ID)
		assert.Equal(t, dnsmessage.RCodeServerFailure, resp.Header.RCode)
		assert.Len(t, resp.Questions, 2)
		assert.Empty(t, resp.Answers)
	})

	t.Run("unsupported opcode", func(t *testing.T) {
		resp, err := exchange(t, port, buildQuery(t, dnsmessage.Header{ID: 10, OpCode: 2}, "api.e2e.test."))
		require.NoError(t, err)
		assert.Equal(t, dnsmessage.OpCode(2), resp.Header.OpCode)
		assert.Equal(t, dnsmessage.RCodeNotImplemented, resp.Header.RCode)
	})

	t.Run("garbage gets no reply", func(t *testing.T) {
		conn, err := net.Dial("udp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		require.NoError(t, err)
		defer conn.Close()
		_, err = conn.Write([]byte{0x12, 0x34, 0x01})
		require.NoError(t, err)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
		_, err = conn.Read(make([]byte, 512))
		var ne net.Error
		require.True(t, errors.As(err, &ne))
		assert.True(t, ne.Timeout())
	})

	for _, hdr := range resolver.seen() {
		assert.False(t, hdr.Response)
		assert.False(t, hdr.RecursionDesired, "RD is not forwarded by default")
	}

	require.NoError(t, stop())
	snap := app.forwarder.Stats()
	assert.Equal(t, uint64(1), snap.TimedOut)
	assert.Equal(t, uint64(1), snap.NotImplemented)
	assert.Equal(t, uint64(1), snap.DecodeErrors)
	assert.Zero(t, app.forwarder.Pending())
}
