// Package codec implements the canonical, deterministic byte encoding
// of a KernelEvent (spec.md §6): fixed field order, big-endian
// integers, length-prefixed strings and byte blobs, and no
// floating-point fields. The encoding is used both as the hash input
// for the storage layer's causal EventId chain and as the on-disk
// representation.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/toka-os/toka-core/internal/types"
)

// FormatVersion is prepended to every canonical encoding so future
// wire changes can be distinguished from this one.
const FormatVersion byte = 0x01

// EventIDSize is the width in bytes of an EventId: a SHA-256 digest.
const EventIDSize = sha256.Size

// EventID is a content-addressed identifier for a stored event: the
// hash of the previous EventId concatenated with this event's
// canonical bytes (spec.md §6 "causal hash chain").
type EventID [EventIDSize]byte

// ZeroEventID is the previous-id used for the first event in a chain.
var ZeroEventID EventID

// String renders the id as lowercase hex.
func (id EventID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// Encode serialises event into its canonical byte form:
// {kind_tag: u8, timestamp: i64_be, body: kind-specific}, prefixed by
// FormatVersion. The body layout is fixed per EventKind; field order
// within a body never varies across calls.
func Encode(event types.KernelEvent) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(FormatVersion)
	buf.WriteByte(byte(event.Kind))
	writeInt64(&buf, event.Timestamp)

	switch event.Kind {
	case types.EventTaskScheduled:
		writeEntityID(&buf, event.TaskAgent)
		writeString(&buf, event.TaskDesc)
	case types.EventAgentSpawned:
		writeEntityID(&buf, event.SpawnParent)
		writeEntityID(&buf, event.SpawnChild)
		writeString(&buf, event.SpawnName)
	case types.EventObservation:
		writeEntityID(&buf, event.ObsAgent)
		writeBytes(&buf, event.ObsData)
	case types.EventAgentTerminate:
		writeEntityID(&buf, event.TermAgent)
		writeString(&buf, string(event.TermReason))
	default:
		return nil, fmt.Errorf("codec: unknown event kind %d", event.Kind)
	}

	return buf.Bytes(), nil
}

// ChainNext computes the EventId for the next event appended after
// prev: H(prev || canonical_bytes(event)). Use ZeroEventID as prev for
// the first event in a chain.
func ChainNext(prev EventID, event types.KernelEvent) (EventID, error) {
	body, err := Encode(event)
	if err != nil {
		return EventID{}, err
	}
	h := sha256.New()
	h.Write(prev[:])
	h.Write(body)
	var out EventID
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Decode parses bytes produced by Encode back into a KernelEvent. It
// rejects anything not carrying the expected FormatVersion so future
// format changes fail closed rather than silently misparsing.
func Decode(data []byte) (types.KernelEvent, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return types.KernelEvent{}, fmt.Errorf("codec: read format version: %w", err)
	}
	if version != FormatVersion {
		return types.KernelEvent{}, fmt.Errorf("codec: unsupported format version %d", version)
	}

	kindByte, err := r.ReadByte()
	if err != nil {
		return types.KernelEvent{}, fmt.Errorf("codec: read event kind: %w", err)
	}
	kind := types.EventKind(kindByte)

	ts, err := readInt64(r)
	if err != nil {
		return types.KernelEvent{}, fmt.Errorf("codec: read timestamp: %w", err)
	}

	event := types.KernelEvent{Kind: kind, Timestamp: ts}

	switch kind {
	case types.EventTaskScheduled:
		if event.TaskAgent, err = readEntityID(r); err != nil {
			return types.KernelEvent{}, err
		}
		if event.TaskDesc, err = readString(r); err != nil {
			return types.KernelEvent{}, err
		}
	case types.EventAgentSpawned:
		if event.SpawnParent, err = readEntityID(r); err != nil {
			return types.KernelEvent{}, err
		}
		if event.SpawnChild, err = readEntityID(r); err != nil {
			return types.KernelEvent{}, err
		}
		if event.SpawnName, err = readString(r); err != nil {
			return types.KernelEvent{}, err
		}
	case types.EventObservation:
		if event.ObsAgent, err = readEntityID(r); err != nil {
			return types.KernelEvent{}, err
		}
		if event.ObsData, err = readBytes(r); err != nil {
			return types.KernelEvent{}, err
		}
	case types.EventAgentTerminate:
		if event.TermAgent, err = readEntityID(r); err != nil {
			return types.KernelEvent{}, err
		}
		reason, err := readString(r)
		if err != nil {
			return types.KernelEvent{}, err
		}
		event.TermReason = types.TerminationReason(reason)
	default:
		return types.KernelEvent{}, fmt.Errorf("codec: unknown event kind %d", kind)
	}

	if r.Len() != 0 {
		return types.KernelEvent{}, fmt.Errorf("codec: %d trailing bytes after decode", r.Len())
	}
	return event, nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var tmp [8]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(tmp[:])), nil
}

func readEntityID(r *bytes.Reader) (types.EntityID, error) {
	var id types.EntityID
	if _, err := readFull(r, id[:]); err != nil {
		return types.EntityID{}, err
	}
	return id, nil
}

func readString(r *bytes.Reader) (string, error) {
	data, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("codec: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		// An empty blob decodes as nil, as events are built with nil data.
		return nil, nil
	}
	data := make([]byte, n)
	if _, err := readFull(r, data); err != nil {
		return nil, fmt.Errorf("codec: read %d-byte payload: %w", n, err)
	}
	return data, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, fmt.Errorf("codec: short read: got %d want %d", n, len(buf))
	}
	return n, nil
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func writeEntityID(buf *bytes.Buffer, id types.EntityID) {
	buf.Write(id[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, data []byte) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(data)))
	buf.Write(tmp[:])
	buf.Write(data)
}
