package udp

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnicastRoundTrip(t *testing.T) {
	r, err := Listen("127.0.0.1:0", "")
	require.NoError(t, err)
	defer r.Close()

	s, err := Dial(r.LocalAddr().String(), SenderOptions{})
	require.NoError(t, err)
	defer s.Close()

	payload := bytes.Repeat([]byte{0x47, 1, 2, 3}, 47)
	n, err := s.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, 1400)
	done := make(chan int, 1)
	go func() {
		n, _ := r.Read(buf)
		done <- n
	}()
	select {
	case n := <-done:
		require.Equal(t, payload, buf[:n])
	case <-time.After(2 * time.Second):
		t.Fatal("no datagram received")
	}
}

func TestCloseUnblocksRead(t *testing.T) {
	r, err := Listen("127.0.0.1:0", "")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := r.Read(make([]byte, 10))
		errc <- err
	}()
	require.NoError(t, r.Close())
	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read not unblocked by close")
	}
}

func TestReadTruncated(t *testing.T) {
	if msgTrunc == 0 {
		t.Skip("truncation not reported on this platform")
	}
	r, err := Listen("127.0.0.1:0", "")
	require.NoError(t, err)
	defer r.Close()
	s, err := Dial(r.LocalAddr().String(), SenderOptions{})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Write(bytes.Repeat([]byte{0x47}, 3*188))
	require.NoError(t, err)
	_, err = s.Write(bytes.Repeat([]byte{0x47}, 188))
	require.NoError(t, err)

	buf := make([]byte, 2*188)
	require.NoError(t, r.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = r.Read(buf)
	require.ErrorIs(t, err, ErrTruncated)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 188, n)
}

func TestLookupInterface(t *testing.T) {
	ifi, err := LookupInterface("")
	require.NoError(t, err)
	require.Nil(t, ifi)

	ifi, err = LookupInterface("127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, ifi)

	ip, err := InterfaceIPv4(ifi)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", ip.String())

	byName, err := LookupInterface(ifi.Name)
	require.NoError(t, err)
	require.Equal(t, ifi.Index, byName.Index)

	_, err = LookupInterface("no-such-if0")
	require.Error(t, err)
	_, err = LookupInterface("192.0.2.254")
	require.Error(t, err)
}

func TestBadAddresses(t *testing.T) {
	_, err := Listen("not an address", "")
	require.Error(t, err)
	_, err = Dial("239.1.1.1", SenderOptions{})
	require.Error(t, err, "port is required")
}
