package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guseggert/evalshell/internal/oracletest"
)

const window = 150 * time.Millisecond

func dialOracle(t *testing.T, script []oracletest.Reply, opts ...oracletest.Option) *Conn {
	t.Helper()
	srv := oracletest.Start(t, script, opts...)
	conn, err := Dial(srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRoundTrip(t *testing.T) {
	conn := dialOracle(t, []oracletest.Reply{{Body: "/home/user\n"}})
	got := conn.RoundTrip([]byte("req\n"), window)
	assert.Equal(t, "/home/user\n", string(got))
}

func TestReceiveAccumulatesBurst(t *testing.T) {
	// Two fragments inside one idle window arrive as one response.
	conn := dialOracle(t, []oracletest.Reply{{Body: "first", Then: "second", ThenDelay: 20 * time.Millisecond}})
	got := conn.RoundTrip([]byte("req\n"), window)
	assert.Equal(t, "firstsecond", string(got))
}

// A remote computation slower than the idle window yields a strict prefix of
// the true output, and the tail poisons the next round trip. Documented
// limitation of the unframed wire, reproduced here on a real socket.
func TestSlowResponderTruncates(t *testing.T) {
	conn := dialOracle(t, []oracletest.Reply{{Body: "partial", Then: "-rest", ThenDelay: 500 * time.Millisecond}})

	got := conn.RoundTrip([]byte("req\n"), window)
	assert.Equal(t, "partial", string(got))

	// The late fragment is still in flight and lands on the next exchange.
	late := conn.Receive(600 * time.Millisecond)
	assert.Equal(t, "-rest", string(late))
}

func TestPeerCloseEndsReceive(t *testing.T) {
	conn := dialOracle(t, []oracletest.Reply{{Body: "bye", CloseConn: true}})

	start := time.Now()
	got := conn.RoundTrip([]byte("req\n"), 2*time.Second)
	assert.Equal(t, "bye", string(got))
	// EOF must end the receive well before the idle window would.
	assert.Less(t, time.Since(start), time.Second)
}

func TestSilentPeerYieldsEmptyResponse(t *testing.T) {
	conn := dialOracle(t, nil)
	got := conn.RoundTrip([]byte("req\n"), window)
	assert.Empty(t, got)
}

// A dropped connection is indistinguishable from an empty reply: the fault
// is swallowed, not surfaced.
func TestSendAfterCloseSwallowed(t *testing.T) {
	conn := dialOracle(t, []oracletest.Reply{{CloseConn: true}})

	_ = conn.RoundTrip([]byte("first\n"), window)
	got := conn.RoundTrip([]byte("second\n"), window)
	assert.Empty(t, got)
}

func TestGreetingDrain(t *testing.T) {
	conn := dialOracle(t, nil, oracletest.WithGreeting("welcome\n"))
	got := conn.Receive(window)
	assert.Equal(t, "welcome\n", string(got))
}
