package tradelog

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/engine"
	"matchbook/domain/orderbook"
)

var ErrCorruptRecord = errors.New("tradelog: corrupt record")

// Records are framed as [len:4 LE][crc32:4 LE][wire body]. The length
// and checksum catch truncated or bit-rotted values on read.
func frame(body []byte) []byte {
	out := make([]byte, 8, 8+len(body))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(body))
	return append(out, body...)
}

func unframe(data []byte) ([]byte, error) {
	if len(data) < 8 {
		return nil, ErrCorruptRecord
	}
	body := data[8:]
	if binary.LittleEndian.Uint32(data[:4]) != uint32(len(body)) {
		return nil, ErrCorruptRecord
	}
	if binary.LittleEndian.Uint32(data[4:8]) != crc32.ChecksumIEEE(body) {
		return nil, ErrCorruptRecord
	}
	return body, nil
}

// Trade wire fields.
const (
	tfID        = 1
	tfMarket    = 2
	tfMakerOID  = 3
	tfTakerOID  = 4
	tfMakerUser = 5
	tfTakerUser = 6
	tfPrice     = 7
	tfQty       = 8
	tfSide      = 9
	tfSeq       = 10
	tfTime      = 11
)

func encodeTrade(t *engine.Trade) []byte {
	var b []byte
	b = appendBytesField(b, tfID, t.ID[:])
	b = appendStringField(b, tfMarket, t.Market)
	b = appendBytesField(b, tfMakerOID, t.MakerOrderID[:])
	b = appendBytesField(b, tfTakerOID, t.TakerOrderID[:])
	b = appendStringField(b, tfMakerUser, t.MakerUserID)
	b = appendStringField(b, tfTakerUser, t.TakerUserID)
	b = appendVarintField(b, tfPrice, uint64(t.Price))
	b = appendVarintField(b, tfQty, uint64(t.Qty))
	b = appendVarintField(b, tfSide, uint64(t.Side))
	b = appendVarintField(b, tfSeq, t.SeqID)
	b = appendVarintField(b, tfTime, uint64(t.Time.UnixNano()))
	return frame(b)
}

func decodeTrade(data []byte) (*engine.Trade, error) {
	body, err := unframe(data)
	if err != nil {
		return nil, err
	}

	t := &engine.Trade{}
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		body = body[n:]

		switch num {
		case tfID, tfMakerOID, tfTakerOID:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			id, err := uuid.FromBytes(v)
			if err != nil {
				return nil, ErrCorruptRecord
			}
			switch num {
			case tfID:
				t.ID = id
			case tfMakerOID:
				t.MakerOrderID = id
			case tfTakerOID:
				t.TakerOrderID = id
			}
			body = body[n:]
		case tfMarket, tfMakerUser, tfTakerUser:
			v, n := protowire.ConsumeString(body)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			switch num {
			case tfMarket:
				t.Market = v
			case tfMakerUser:
				t.MakerUserID = v
			case tfTakerUser:
				t.TakerUserID = v
			}
			body = body[n:]
		case tfPrice, tfQty, tfSide, tfSeq, tfTime:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			switch num {
			case tfPrice:
				t.Price = int64(v)
			case tfQty:
				t.Qty = int64(v)
			case tfSide:
				t.Side = orderbook.Side(v)
			case tfSeq:
				t.SeqID = v
			case tfTime:
				t.Time = time.Unix(0, int64(v))
			}
			body = body[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			body = body[n:]
		}
	}
	return t, nil
}

// Settlement wire fields; legs are nested messages.
const (
	sfID      = 1
	sfTradeID = 2
	sfMarket  = 3
	sfSeq     = 4
	sfTime    = 5
	sfLeg     = 6

	lfAsset  = 1
	lfFrom   = 2
	lfTo     = 3
	lfAmount = 4
)

func encodeSettlement(r *engine.SettlementRecord) []byte {
	var b []byte
	b = appendBytesField(b, sfID, r.ID[:])
	b = appendBytesField(b, sfTradeID, r.TradeID[:])
	b = appendStringField(b, sfMarket, r.Market)
	b = appendVarintField(b, sfSeq, r.SeqID)
	b = appendVarintField(b, sfTime, uint64(r.Time.UnixNano()))
	for _, leg := range r.Legs {
		b = appendBytesField(b, sfLeg, encodeLeg(leg))
	}
	return frame(b)
}

func encodeLeg(l engine.SettlementLeg) []byte {
	var b []byte
	b = appendStringField(b, lfAsset, l.Asset)
	b = appendStringField(b, lfFrom, l.FromUser)
	b = appendStringField(b, lfTo, l.ToUser)
	b = appendVarintField(b, lfAmount, uint64(l.Amount))
	return b
}

func decodeSettlement(data []byte) (*engine.SettlementRecord, error) {
	body, err := unframe(data)
	if err != nil {
		return nil, err
	}

	r := &engine.SettlementRecord{}
	legs := 0
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		body = body[n:]

		switch num {
		case sfID, sfTradeID:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			id, err := uuid.FromBytes(v)
			if err != nil {
				return nil, ErrCorruptRecord
			}
			if num == sfID {
				r.ID = id
			} else {
				r.TradeID = id
			}
			body = body[n:]
		case sfMarket:
			v, n := protowire.ConsumeString(body)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			r.Market = v
			body = body[n:]
		case sfSeq, sfTime:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			if num == sfSeq {
				r.SeqID = v
			} else {
				r.Time = time.Unix(0, int64(v))
			}
			body = body[n:]
		case sfLeg:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			if legs >= len(r.Legs) {
				return nil, ErrCorruptRecord
			}
			leg, err := decodeLeg(v)
			if err != nil {
				return nil, err
			}
			r.Legs[legs] = leg
			legs++
			body = body[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			body = body[n:]
		}
	}
	return r, nil
}

func decodeLeg(body []byte) (engine.SettlementLeg, error) {
	var l engine.SettlementLeg
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return l, protowire.ParseError(n)
		}
		body = body[n:]

		switch num {
		case lfAsset, lfFrom, lfTo:
			v, n := protowire.ConsumeString(body)
			if n < 0 {
				return l, protowire.ParseError(n)
			}
			switch num {
			case lfAsset:
				l.Asset = v
			case lfFrom:
				l.FromUser = v
			case lfTo:
				l.ToUser = v
			}
			body = body[n:]
		case lfAmount:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return l, protowire.ParseError(n)
			}
			l.Amount = int64(v)
			body = body[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return l, protowire.ParseError(n)
			}
			body = body[n:]
		}
	}
	return l, nil
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
