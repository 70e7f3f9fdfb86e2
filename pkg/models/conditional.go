package models

// Conditional evaluates a rendered condition expression to a boolean.
type Conditional interface {
	Evaluate(exp any) (bool, error)
}

// GetConditional returns the interpreter for an expression language.
func GetConditional(language string) Conditional {
	switch language {
	case "", "simple":
		return &SimpleConditionalInterpreter{}
	default:
		return nil
	}
}
