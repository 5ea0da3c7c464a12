package collab

import (
	"errors"
	"fmt"
)

var (
	ErrFutureVersion = errors.New("edit base version is ahead of the document")
	ErrHistoryTooOld = errors.New("edit base version is older than the retained history")
)

type appliedOp struct {
	version int
	op      Operation
}

// Document is the authoritative copy of a session's shared document. Edits
// made against an older version are rebased over the retained history before
// they are applied. Not safe for concurrent use; Room serializes access.
type Document struct {
	content string
	version int
	history []appliedOp
	limit   int
}

func NewDocument(content string, version, historyLimit int) *Document {
	if historyLimit <= 0 {
		historyLimit = 500
	}
	return &Document{content: content, version: version, limit: historyLimit}
}

func (d *Document) State() DocumentState {
	return DocumentState{Content: d.content, Version: d.version}
}

// Apply rebases op from baseVersion onto the current version, applies it and
// returns the rebased operation with the new version.
func (d *Document) Apply(baseVersion int, op Operation) (Operation, int, error) {
	if err := op.Validate(); err != nil {
		return Operation{}, d.version, err
	}
	if baseVersion > d.version || baseVersion < 0 {
		return Operation{}, d.version, fmt.Errorf("%w: base %d, current %d", ErrFutureVersion, baseVersion, d.version)
	}

	behind := d.version - baseVersion
	if behind > len(d.history) {
		return Operation{}, d.version, fmt.Errorf("%w: base %d, oldest %d", ErrHistoryTooOld, baseVersion, d.version-len(d.history))
	}

	rebased := op
	for _, applied := range d.history[len(d.history)-behind:] {
		var err error
		rebased, err = Transform(rebased, applied.op)
		if err != nil {
			return Operation{}, d.version, err
		}
	}

	next := d.content
	if !rebased.IsNoop() {
		var err error
		next, err = rebased.Apply(d.content)
		if err != nil {
			return Operation{}, d.version, err
		}
	}

	d.content = next
	d.version++
	d.history = append(d.history, appliedOp{version: d.version, op: rebased})
	if over := len(d.history) - d.limit; over > 0 {
		d.history = append(d.history[:0:0], d.history[over:]...)
	}
	return rebased, d.version, nil
}
