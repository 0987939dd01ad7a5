package dsl

import "fmt"

// ParseError reports malformed syntax: unbalanced nesting, an empty form,
// a misplaced literal in operator position, or an arity violation. It is
// deliberately distinct from BlockedError — syntax problems are benign,
// non-whitelisted constructs are not.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg)
}

// BlockedError reports a construct outside the enumerated whitelist: an
// unknown operator anywhere in the tree, or a token that does not belong
// to the literal/identifier grammar at all. The whole request fails with
// status BLOCKED regardless of nesting depth.
type BlockedError struct {
	Pos   int
	Token string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("disallowed construct %q at offset %d", e.Token, e.Pos)
}
