// Package sequence issues monotonically increasing request tokens. A
// completion is only applied when its token is still the latest one issued,
// which stands in for cancelling provider calls that cannot be aborted.
package sequence

import "sync/atomic"

// Token identifies one issued request
type Token uint64

// Sequencer hands out tokens; the zero value is ready to use
type Sequencer struct {
	latest atomic.Uint64
}

// Next issues a new token, superseding every earlier one
func (s *Sequencer) Next() Token {
	return Token(s.latest.Add(1))
}

// Latest returns the most recently issued token
func (s *Sequencer) Latest() Token {
	return Token(s.latest.Load())
}

// IsCurrent reports whether t is still the most recently issued token
func (s *Sequencer) IsCurrent(t Token) bool {
	return t != 0 && s.Latest() == t
}
