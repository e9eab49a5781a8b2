// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConstraint is the sentinel error wrapped by InvalidConstraintError.
var ErrInvalidConstraint = errors.New("invalid version constraint")

type (
	// Constraint is a single comparison such as ">=0.95a" or "<0.97".
	Constraint struct {
		// Op is one of =, !=, >, >=, <, <=.
		Op string
		// Version is the operand.
		Version Version
	}

	// Constraints is a conjunction of constraints.
	Constraints []Constraint

	// InvalidConstraintError is returned when a constraint string cannot be parsed.
	InvalidConstraintError struct {
		Value  string
		Reason string
	}
)

// constraintOps is ordered longest first so ">=" wins over ">".
var constraintOps = []string{">=", "<=", "!=", "==", ">", "<", "="}

// Error implements the error interface.
func (e *InvalidConstraintError) Error() string {
	return fmt.Sprintf("invalid version constraint %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidConstraint for errors.Is.
func (e *InvalidConstraintError) Unwrap() error { return ErrInvalidConstraint }

// ParseConstraint parses one "<op><version>" expression. A bare version means "=".
func ParseConstraint(s string) (Constraint, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Constraint{}, &InvalidConstraintError{Value: s, Reason: "empty"}
	}

	op := "="
	for _, candidate := range constraintOps {
		if strings.HasPrefix(trimmed, candidate) {
			op = candidate
			trimmed = strings.TrimSpace(trimmed[len(candidate):])
			break
		}
	}
	if op == "==" {
		op = "="
	}

	v := Parse(trimmed)
	if v.IsZero() {
		return Constraint{}, &InvalidConstraintError{Value: s, Reason: "missing version"}
	}
	return Constraint{Op: op, Version: v}, nil
}

// ParseConstraints parses a comma-separated conjunction such as ">=0.95a, <0.97a".
func ParseConstraints(s string) (Constraints, error) {
	var out Constraints
	for part := range strings.SplitSeq(s, ",") {
		c, err := ParseConstraint(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Matches reports whether v satisfies the constraint.
func (c Constraint) Matches(v Version) bool {
	o := v.Compare(c.Version)
	switch c.Op {
	case "=":
		return o == Equal
	case "!=":
		return o != Equal
	case ">":
		return o == Greater
	case ">=":
		return o != Less
	case "<":
		return o == Less
	case "<=":
		return o != Greater
	default:
		return false
	}
}

// String renders the constraint as "<op><version>".
func (c Constraint) String() string {
	return c.Op + c.Version.String()
}

// Matches reports whether v satisfies every constraint.
func (cs Constraints) Matches(v Version) bool {
	for _, c := range cs {
		if !c.Matches(v) {
			return false
		}
	}
	return true
}

// String joins the constraints with ", ".
func (cs Constraints) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// IsConstraintExpr reports whether s looks like a constraint expression rather
// than a bare version.
func IsConstraintExpr(s string) bool {
	t := strings.TrimSpace(s)
	return strings.ContainsAny(t, "<>=!,")
}
