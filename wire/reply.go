package wire

import "github.com/wippyai/guest-bridge/errors"

// Single reply: ReplyBegin [tag slot]* ReplyEnd. The guest walks tags until
// ReplyEnd; every slot is a fixed 8-byte little-endian payload.

// AppendSingleReply encodes resolved values in the single-reply framing.
func AppendSingleReply(buf *Buffer, values []Encoded) {
	buf.WriteByte(ReplyBegin)
	for _, v := range values {
		buf.WriteByte(byte(v.Tag))
		buf.WriteU64(v.Slot)
	}
	buf.WriteByte(ReplyEnd)
}

// AppendErrorReply encodes an error-code container in the same framing used
// for synchronous single-value returns.
func AppendErrorReply(buf *Buffer, code uint32) {
	buf.WriteByte(ReplyBegin)
	buf.WriteByte(byte(TagErrorCode))
	buf.WriteU64(uint64(code))
	buf.WriteByte(ReplyEnd)
}

// GroupWriter aggregates per-operation results of a returning batch into
// one group-encoded reply: GroupStart [arity entry]* GroupStop. Each entry
// is tagged with its return-hint arity so the guest can walk the group
// without re-deriving hints.
type GroupWriter struct {
	buf   *Buffer
	count int
}

// NewGroupWriter opens a group reply on buf.
func NewGroupWriter(buf *Buffer) *GroupWriter {
	buf.WriteByte(GroupStart)
	return &GroupWriter{buf: buf}
}

// Add appends one entry. ArityNone results are never added to a group;
// calling Add with ArityNone is a no-op.
func (g *GroupWriter) Add(arity Arity, values []Encoded) {
	if arity == ArityNone {
		return
	}
	g.buf.WriteByte(byte(arity))
	if arity != AritySingle {
		g.buf.WriteU32(uint32(len(values)))
	}
	for _, v := range values {
		g.buf.WriteByte(byte(v.Tag))
		g.buf.WriteU64(v.Slot)
	}
	g.count++
}

// Count returns the number of entries added so far.
func (g *GroupWriter) Count() int {
	return g.count
}

// Finish closes the group and returns the reply shrunk to its exact size.
func (g *GroupWriter) Finish() []byte {
	g.buf.WriteByte(GroupStop)
	return g.buf.Bytes()
}

// ReplyValue is one decoded reply entry: its tag and raw 8-byte slot.
type ReplyValue struct {
	Tag  Tag
	Slot uint64
}

// GroupEntry is one decoded group-reply entry.
type GroupEntry struct {
	Arity  Arity
	Values []ReplyValue
}

// ParseSingleReply walks a single-reply buffer. This is the host-side twin
// of the guest's reply decoder, used by tests and tooling.
func ParseSingleReply(data []byte) ([]ReplyValue, error) {
	if len(data) < 2 {
		return nil, errors.Truncated(errors.PhaseDecode, 0, 2, len(data))
	}
	if data[0] != ReplyBegin {
		return nil, errors.Framing(errors.PhaseDecode, 0, ReplyBegin, data[0])
	}

	var values []ReplyValue
	cursor := 1
	for {
		if cursor >= len(data) {
			return nil, errors.Truncated(errors.PhaseDecode, cursor, 1, 0)
		}
		if data[cursor] == ReplyEnd {
			return values, nil
		}
		if cursor+9 > len(data) {
			return nil, errors.Truncated(errors.PhaseDecode, cursor, 9, len(data)-cursor)
		}
		values = append(values, ReplyValue{
			Tag:  Tag(data[cursor]),
			Slot: leU64(data[cursor+1:]),
		})
		cursor += 9
	}
}

// ParseGroupReply walks a group-reply buffer.
func ParseGroupReply(data []byte) ([]GroupEntry, error) {
	if len(data) < 2 {
		return nil, errors.Truncated(errors.PhaseDecode, 0, 2, len(data))
	}
	if data[0] != GroupStart {
		return nil, errors.Framing(errors.PhaseDecode, 0, GroupStart, data[0])
	}

	var entries []GroupEntry
	cursor := 1
	for {
		if cursor >= len(data) {
			return nil, errors.Truncated(errors.PhaseDecode, cursor, 1, 0)
		}
		if data[cursor] == GroupStop {
			return entries, nil
		}

		arity := Arity(data[cursor])
		cursor++
		if arity == ArityNone || arity > ArityMulti {
			return nil, errors.InvalidData(errors.PhaseDecode, []string{"group"},
				"illegal entry arity")
		}

		count := 1
		if arity != AritySingle {
			if cursor+4 > len(data) {
				return nil, errors.Truncated(errors.PhaseDecode, cursor, 4, len(data)-cursor)
			}
			count = int(leU32(data[cursor:]))
			cursor += 4
			// The count comes from an untrusted buffer; reject it before it
			// sizes an allocation.
			if count > (len(data)-cursor)/9 {
				return nil, errors.InvalidData(errors.PhaseDecode, []string{"group"},
					"entry count overruns buffer")
			}
		}

		entry := GroupEntry{Arity: arity, Values: make([]ReplyValue, 0, count)}
		for i := 0; i < count; i++ {
			if cursor+9 > len(data) {
				return nil, errors.Truncated(errors.PhaseDecode, cursor, 9, len(data)-cursor)
			}
			entry.Values = append(entry.Values, ReplyValue{
				Tag:  Tag(data[cursor]),
				Slot: leU64(data[cursor+1:]),
			})
			cursor += 9
		}
		entries = append(entries, entry)
	}
}
