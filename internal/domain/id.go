package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IDKind tells which identity space an ID was drawn from.
type IDKind uint8

const (
	// KindNone marks the zero ID.
	KindNone IDKind = iota
	// KindDurable ids are assigned by the remote quiz store.
	KindDurable
	// KindProvisional ids are fabricated locally for entities not yet persisted.
	KindProvisional
)

// provisionalPrefix tags provisional ids in their textual form.
const provisionalPrefix = "tmp-"

// ID identifies a quiz, question or answer. Durable and provisional ids live in
// disjoint spaces: two IDs are equal only if both kind and value match.
type ID struct {
	kind  IDKind
	value int64
}

// DurableID wraps a server-assigned identifier.
func DurableID(v int64) ID {
	return ID{kind: KindDurable, value: v}
}

// ProvisionalID wraps a locally allocated identifier.
func ProvisionalID(v int64) ID {
	return ID{kind: KindProvisional, value: v}
}

func (id ID) Kind() IDKind { return id.kind }

func (id ID) Value() int64 { return id.value }

func (id ID) IsZero() bool { return id.kind == KindNone }

func (id ID) IsDurable() bool { return id.kind == KindDurable }

func (id ID) IsProvisional() bool { return id.kind == KindProvisional }

func (id ID) String() string {
	switch id.kind {
	case KindDurable:
		return strconv.FormatInt(id.value, 10)
	case KindProvisional:
		return provisionalPrefix + strconv.FormatInt(id.value, 10)
	default:
		return ""
	}
}

// ParseID accepts the textual form produced by String.
func ParseID(s string) (ID, error) {
	if s == "" {
		return ID{}, nil
	}
	kind := KindDurable
	if strings.HasPrefix(s, provisionalPrefix) {
		kind = KindProvisional
		s = strings.TrimPrefix(s, provisionalPrefix)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("parse id %q: %w", s, ErrInvalidID)
	}
	return ID{kind: kind, value: v}, nil
}

// MarshalJSON encodes durable ids as numbers and provisional ids as tagged strings.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case KindDurable:
		return []byte(strconv.FormatInt(id.value, 10)), nil
	case KindProvisional:
		return json.Marshal(id.String())
	default:
		return []byte("null"), nil
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = ID{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("decode id %s: %w", raw, ErrInvalidID)
	}
	*id = DurableID(v)
	return nil
}
