// Package codeplug is the semantic layer over bit-packed record data
// (§4.G): model descriptors declare the bit layout of each field, and
// Decode/Encode walk a descriptor once per record to produce or pack a
// Go value, rather than re-scanning the buffer per field.
package codeplug

import (
	"fmt"

	"github.com/n5dmr/trbo-xnl/pkg/wire"
)

// ValueType tags how a FieldDescriptor's bits are interpreted.
type ValueType int

const (
	ValueUint ValueType = iota
	ValueBool
	ValueString
	ValueEnum
)

// FieldDescriptor is one field of a Model: its bit position within the
// record, its value type, and (for strings) its encoding and maximum
// length. Dependencies names other field IDs that must be re-evaluated
// when this field's decoded value changes (e.g. a tagged enum value that
// gates whether a dependent field is meaningful).
type FieldDescriptor struct {
	ID             string
	BitOffset      int
	BitLength      int
	Type           ValueType
	StringEncoding wire.StringEncoding // only consulted when Type == ValueString
	MaxLength      int                 // byte length of string fields; ignored otherwise
	Default        any
	Dependencies   []string
}

// Model declares the complete field layout of one record kind (a channel,
// a zone, a contact, ...) for one radio family.
type Model struct {
	Name    string
	ByteLen int
	Fields  []FieldDescriptor
}

// DecodeRecord walks m's fields once against record, in descriptor order,
// and returns each field's decoded value keyed by FieldDescriptor.ID.
// Fields are read via explicit Seek to their declared bit_offset rather
// than sequential advance, since descriptors may list fields out of
// physical order (e.g. grouping identity fields before layout fields for
// readability) — this keeps decode O(n_fields) regardless of descriptor
// ordering, matching §4.G's O(n_records · avg_string_len) budget.
func DecodeRecord(m Model, record []byte) (map[string]any, error) {
	if len(record) < m.ByteLen {
		return nil, fmt.Errorf("codeplug: record for model %q is %d bytes, want %d", m.Name, len(record), m.ByteLen)
	}
	r := wire.NewBitReader(record)
	out := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		r.Seek(f.BitOffset)
		v, err := decodeField(r, f)
		if err != nil {
			return nil, fmt.Errorf("codeplug: model %q field %q: %w", m.Name, f.ID, err)
		}
		out[f.ID] = v
	}
	return out, nil
}

// EncodeRecord packs values (keyed by FieldDescriptor.ID) into a new
// record buffer per m. A field absent from values falls back to its
// Default.
func EncodeRecord(m Model, values map[string]any) ([]byte, error) {
	w := wire.NewBitWriter(m.ByteLen)
	for _, f := range m.Fields {
		v, ok := values[f.ID]
		if !ok {
			v = f.Default
		}
		w.Seek(f.BitOffset)
		if err := encodeField(w, f, v); err != nil {
			return nil, fmt.Errorf("codeplug: model %q field %q: %w", m.Name, f.ID, err)
		}
	}
	return w.Bytes(), nil
}

func decodeField(r *wire.BitReader, f FieldDescriptor) (any, error) {
	switch f.Type {
	case ValueUint, ValueEnum:
		return r.ReadUint(f.BitLength)
	case ValueBool:
		return r.ReadBool()
	case ValueString:
		return r.ReadString(f.MaxLength, f.StringEncoding)
	default:
		return nil, fmt.Errorf("unknown value type %d", f.Type)
	}
}

func encodeField(w *wire.BitWriter, f FieldDescriptor, v any) error {
	switch f.Type {
	case ValueUint, ValueEnum:
		n, err := asUint64(v)
		if err != nil {
			return err
		}
		return w.WriteUint(n, f.BitLength)
	case ValueBool:
		b, _ := v.(bool)
		return w.WriteBool(b)
	case ValueString:
		s, _ := v.(string)
		return w.WriteString(s, f.MaxLength, f.StringEncoding)
	default:
		return fmt.Errorf("unknown value type %d", f.Type)
	}
}

func asUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case byte:
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned field", n)
		}
		return uint64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not an unsigned integer", v, v)
	}
}
