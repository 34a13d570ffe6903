package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestLifecycle(t *testing.T) {
	o := openOutbox(t)

	require.NoError(t, o.PutNew("SOL-USDC", 1, 0, []byte(`{"type":"trade"}`)))

	rec, err := o.Get("SOL-USDC", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, StateNew, rec.State)
	assert.Equal(t, []byte(`{"type":"trade"}`), rec.Payload)

	require.NoError(t, o.UpdateState(rec, StateSent, 1))
	rec, err = o.Get("SOL-USDC", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, StateSent, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)
	assert.NotZero(t, rec.LastAttempt)
	assert.Equal(t, []byte(`{"type":"trade"}`), rec.Payload)

	require.NoError(t, o.UpdateState(rec, StateAcked, 1))
	require.NoError(t, o.Delete(rec))
	_, err = o.Get("SOL-USDC", 1, 0)
	assert.Error(t, err)
}

func TestScanByStateOrderAndFilter(t *testing.T) {
	o := openOutbox(t)

	require.NoError(t, o.PutNew("SOL-USDC", 2, 0, []byte("b")))
	require.NoError(t, o.PutNew("SOL-USDC", 1, 0, []byte("a0")))
	require.NoError(t, o.PutNew("SOL-USDC", 1, 1, []byte("a1")))
	require.NoError(t, o.PutNew("ETH-USDC", 9, 0, []byte("e")))

	sent, err := o.Get("SOL-USDC", 2, 0)
	require.NoError(t, err)
	require.NoError(t, o.UpdateState(sent, StateSent, 1))

	var seen []string
	err = o.ScanByState(StateNew, func(r Record) error {
		seen = append(seen, string(r.Payload))
		return nil
	})
	require.NoError(t, err)
	// key order: market asc, then seq, then index; SENT entry skipped
	assert.Equal(t, []string{"e", "a0", "a1"}, seen)

	var resend []Record
	require.NoError(t, o.ScanByState(StateSent, func(r Record) error {
		resend = append(resend, r)
		return nil
	}))
	require.Len(t, resend, 1)
	assert.Equal(t, "SOL-USDC", resend[0].Market)
	assert.Equal(t, uint64(2), resend[0].Seq)
}
