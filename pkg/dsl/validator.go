package dsl

import (
	"fmt"
	"strings"
)

// Validate walks every node of a parsed tree and accepts it only if each
// compound form carries a whitelisted operator with a matching arity.
// Unknown operators — anywhere, however deeply nested — yield
// *BlockedError. Arity violations yield *ParseError.
//
// Validation operates purely on AST tags, never on raw source text. On
// success the canonical Op tag is stamped onto every form node, which is
// the only way an Op ever reaches a Node.
func Validate(root *Node) error {
	if root == nil {
		return &ParseError{Pos: 0, Msg: "nil expression"}
	}
	return validateNode(root)
}

func validateNode(n *Node) error {
	if n.Kind != NodeForm {
		return nil
	}

	op := Op(strings.ToUpper(n.Head))
	sig, ok := Signatures[op]
	if !ok {
		return &BlockedError{Pos: n.Pos, Token: n.Head}
	}
	if len(n.Args) < sig.Min || (sig.Max >= 0 && len(n.Args) > sig.Max) {
		return &ParseError{
			Pos: n.Pos,
			Msg: fmt.Sprintf("operator %s takes %s, got %d", op, arityString(sig), len(n.Args)),
		}
	}
	n.Op = op

	for _, arg := range n.Args {
		if err := validateNode(arg); err != nil {
			return err
		}
	}
	return nil
}

func arityString(sig Signature) string {
	if sig.Max < 0 {
		return fmt.Sprintf("at least %d arguments", sig.Min)
	}
	if sig.Min == sig.Max {
		if sig.Min == 1 {
			return "exactly 1 argument"
		}
		return fmt.Sprintf("exactly %d arguments", sig.Min)
	}
	return fmt.Sprintf("%d to %d arguments", sig.Min, sig.Max)
}

// ParseAndValidate is the convenience entry used by the logic engine:
// parse, then fail-closed validation, in one call.
func ParseAndValidate(src string) (*Node, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := Validate(node); err != nil {
		return nil, err
	}
	return node, nil
}

// Normalize returns the canonical single-spaced form of DSL source text.
// Semantically identical requests normalize to identical strings, which
// keys the result cache.
func Normalize(src string) string {
	return strings.Join(strings.Fields(src), " ")
}
