package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnsupportedComparison = errors.New("unsupported comparison")

// SimpleConditionalInterpreter evaluates booleans, numbers and rendered
// binary comparisons such as "12.5 >= 10" or "0xabc == 0xabc".
type SimpleConditionalInterpreter struct{}

// Operators are matched longest first.
var comparisonOperators = []string{">=", "<=", "==", "!=", ">", "<"}

func (s SimpleConditionalInterpreter) Evaluate(exp any) (bool, error) {
	if exp == nil {
		return true, nil
	}

	switch v := exp.(type) {
	case bool:
		return v, nil
	case string:
		return s.evaluateString(strings.TrimSpace(v))
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", exp)
	}
}

func (s SimpleConditionalInterpreter) evaluateString(v string) (bool, error) {
	if v == "" {
		return true, nil
	}

	for _, op := range comparisonOperators {
		left, right, found := strings.Cut(v, op)
		if !found {
			continue
		}

		return compare(strings.TrimSpace(left), op, strings.TrimSpace(right))
	}

	result, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("cannot convert string %q to boolean: %w", v, err)
	}

	return result, nil
}

func compare(left, op, right string) (bool, error) {
	l, lerr := strconv.ParseFloat(left, 64)
	r, rerr := strconv.ParseFloat(right, 64)

	if lerr == nil && rerr == nil {
		switch op {
		case ">=":
			return l >= r, nil
		case "<=":
			return l <= r, nil
		case "==":
			return l == r, nil
		case "!=":
			return l != r, nil
		case ">":
			return l > r, nil
		case "<":
			return l < r, nil
		}
	}

	switch op {
	case "==":
		return left == right, nil
	case "!=":
		return left != right, nil
	default:
		return false, fmt.Errorf("%w: %q %s %q", ErrUnsupportedComparison, left, op, right)
	}
}
