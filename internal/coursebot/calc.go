package coursebot

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/Knetic/govaluate"
)

// the only characters a calculation may contain
const calcGrammar = `[()\d*+/\-\s]+`

func calcPattern(trigger string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(trigger) + ` (` + calcGrammar + `)$`)
}

// evaluate solves an arithmetic expression and formats the result without
// trailing zeros ("62", "2.5").
func evaluate(expr string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("couldn't solve %q: %v", expr, r)
		}
	}()

	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return "", fmt.Errorf("failed to parse expression: %w", err)
	}
	v, err := e.Evaluate(nil)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate expression: %w", err)
	}
	f, ok := v.(float64)
	if !ok {
		return "", fmt.Errorf("expression %q is not numeric", expr)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("expression %q has no finite value", expr)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
