// Package outbox is the durable event outbox: every event a command
// produced is written here before the command is acknowledged, then a
// background publisher drains it to the broker. State transitions are
// NEW -> SENT -> ACKED; SENT entries found at startup are re-published,
// and entries whose retry budget is exhausted are parked as FAILED.
package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Record is one outboxed event. Seq streams are per market, Index
// separates the events one command emitted under the same Seq.
type Record struct {
	Market string
	Seq    uint64
	Index  int

	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeValue(r Record) []byte {
	buf := make([]byte, 13+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[13:], r.Payload)
	return buf
}

func decodeValue(b []byte) (Record, error) {
	if len(b) < 13 {
		return Record{}, errors.New("outbox: invalid record length")
	}
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[13:]...),
	}, nil
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// PutNew inserts a freshly produced event.
func (o *Outbox) PutNew(market string, seq uint64, index int, payload []byte) error {
	rec := Record{State: StateNew, Payload: payload}
	return o.db.Set(keyFor(market, seq, index), encodeValue(rec), pebble.Sync)
}

// UpdateState moves an entry through the publish lifecycle.
func (o *Outbox) UpdateState(r Record, state State, retries uint32) error {
	r.State = state
	r.Retries = retries
	r.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(r.Market, r.Seq, r.Index), encodeValue(r), pebble.Sync)
}

// Delete removes ACKED entries (cleanup).
func (o *Outbox) Delete(r Record) error {
	return o.db.Delete(keyFor(r.Market, r.Seq, r.Index), pebble.Sync)
}

// Get returns one entry.
func (o *Outbox) Get(market string, seq uint64, index int) (Record, error) {
	val, closer, err := o.db.Get(keyFor(market, seq, index))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	rec, err := decodeValue(val)
	if err != nil {
		return Record{}, err
	}
	rec.Market, rec.Seq, rec.Index = market, seq, index
	return rec, nil
}

// ScanByState visits all entries in the given state, key order.
// The publisher drains NEW with this and re-drives stale SENT.
func (o *Outbox) ScanByState(state State, fn func(Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("event/"),
		UpperBound: []byte("event/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeValue(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}
		if rec.Market, rec.Seq, rec.Index, err = parseKey(iter.Key()); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(market string, seq uint64, index int) []byte {
	return []byte(fmt.Sprintf("event/%s/%020d/%03d", market, seq, index))
}

func parseKey(b []byte) (market string, seq uint64, index int, err error) {
	parts := bytes.Split(bytes.TrimPrefix(b, []byte("event/")), []byte("/"))
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("outbox: malformed key %q", b)
	}
	market = string(parts[0])
	if _, err = fmt.Sscanf(string(parts[1]), "%d", &seq); err != nil {
		return "", 0, 0, err
	}
	if _, err = fmt.Sscanf(string(parts[2]), "%d", &index); err != nil {
		return "", 0, 0, err
	}
	return market, seq, index, nil
}
