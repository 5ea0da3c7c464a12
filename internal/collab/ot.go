package collab

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

type OpKind string

const (
	OpInsert OpKind = "insert"
	OpDelete OpKind = "delete"
)

var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrOutOfRange       = errors.New("operation out of range")
	ErrNotRebasable     = errors.New("operation conflicts with a concurrent edit")
)

// Operation is a single insert or delete. Position and Length count runes.
type Operation struct {
	Kind     OpKind `json:"kind"`
	Position int    `json:"position"`
	Text     string `json:"text,omitempty"`
	Length   int    `json:"length,omitempty"`
}

func Insert(pos int, text string) Operation {
	return Operation{Kind: OpInsert, Position: pos, Text: text}
}

func Delete(pos, length int) Operation {
	return Operation{Kind: OpDelete, Position: pos, Length: length}
}

func (o Operation) Validate() error {
	if o.Position < 0 {
		return fmt.Errorf("%w: negative position", ErrInvalidOperation)
	}
	switch o.Kind {
	case OpInsert:
		if o.Text == "" {
			return fmt.Errorf("%w: empty insert", ErrInvalidOperation)
		}
	case OpDelete:
		if o.Length < 0 {
			return fmt.Errorf("%w: negative length", ErrInvalidOperation)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, o.Kind)
	}
	return nil
}

// IsNoop reports a delete that lost its whole range to a concurrent delete.
func (o Operation) IsNoop() bool {
	return o.Kind == OpDelete && o.Length == 0
}

// Apply returns doc with the operation applied.
func (o Operation) Apply(doc string) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	runes := []rune(doc)
	switch o.Kind {
	case OpInsert:
		if o.Position > len(runes) {
			return "", fmt.Errorf("%w: insert at %d, length %d", ErrOutOfRange, o.Position, len(runes))
		}
		out := make([]rune, 0, len(runes)+utf8.RuneCountInString(o.Text))
		out = append(out, runes[:o.Position]...)
		out = append(out, []rune(o.Text)...)
		out = append(out, runes[o.Position:]...)
		return string(out), nil
	default:
		end := o.Position + o.Length
		if end > len(runes) {
			return "", fmt.Errorf("%w: delete %d..%d, length %d", ErrOutOfRange, o.Position, end, len(runes))
		}
		out := make([]rune, 0, len(runes)-o.Length)
		out = append(out, runes[:o.Position]...)
		out = append(out, runes[end:]...)
		return string(out), nil
	}
}

// Transform rebases a, made concurrently with the already applied b, so that
// it can be applied after b. On equal insert positions b stays first.
func Transform(a, b Operation) (Operation, error) {
	switch {
	case a.Kind == OpInsert && b.Kind == OpInsert:
		if a.Position >= b.Position {
			a.Position += utf8.RuneCountInString(b.Text)
		}
		return a, nil

	case a.Kind == OpInsert && b.Kind == OpDelete:
		bEnd := b.Position + b.Length
		switch {
		case a.Position >= bEnd:
			a.Position -= b.Length
		case a.Position > b.Position:
			a.Position = b.Position
		}
		return a, nil

	case a.Kind == OpDelete && b.Kind == OpInsert:
		aEnd := a.Position + a.Length
		switch {
		case b.Position >= aEnd:
		case b.Position <= a.Position:
			a.Position += utf8.RuneCountInString(b.Text)
		default:
			return Operation{}, ErrNotRebasable
		}
		return a, nil

	case a.Kind == OpDelete && b.Kind == OpDelete:
		aStart, aEnd := a.Position, a.Position+a.Length
		bStart, bEnd := b.Position, b.Position+b.Length
		overlap := min(aEnd, bEnd) - max(aStart, bStart)
		if overlap < 0 {
			overlap = 0
		}
		switch {
		case aStart >= bEnd:
			a.Position = aStart - b.Length
		case aStart > bStart:
			a.Position = bStart
		}
		a.Length -= overlap
		return a, nil
	}
	return Operation{}, fmt.Errorf("%w: kinds %q/%q", ErrInvalidOperation, a.Kind, b.Kind)
}
