package compiler

import "fmt"

// SyntaxStructureError is raised when the generator sees a list with the
// wrong length or shape for the special form its keyword names (an `if`
// with other than three operands, a `let` without a binding list, etc).
type SyntaxStructureError struct {
	Form   string
	Detail string
}

func (e *SyntaxStructureError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Form, e.Detail)
}
