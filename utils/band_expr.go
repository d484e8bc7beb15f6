package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
)

// BandExpressions holds parsed band math expressions together with
// the variables each of them references.
type BandExpressions struct {
	ExprNames   []string
	ExprText    []string
	Expressions []*govaluate.EvaluableExpression
	ExprVarRef  [][]string
	VarList     []string
}

var namedExprRegexp = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*([^=].*)$`)

// ParseBandExpressions parses expressions of the form
// `expr` or `name=expr`. Expressions that are a single variable are
// accepted as plain band selections.
func ParseBandExpressions(bandExpr []string) (*BandExpressions, error) {
	parsedExpr := &BandExpressions{}
	varFound := make(map[string]bool)

	for _, rawExpr := range bandExpr {
		exprText := strings.TrimSpace(rawExpr)
		exprName := exprText
		if m := namedExprRegexp.FindStringSubmatch(exprText); m != nil {
			exprName = m[1]
			exprText = strings.TrimSpace(m[2])
		}
		if len(exprText) == 0 {
			return nil, fmt.Errorf("empty band expression: %q", rawExpr)
		}

		expr, err := govaluate.NewEvaluableExpression(exprText)
		if err != nil {
			return nil, fmt.Errorf("parsing error in band expression '%s': %v", exprText, err)
		}

		var varRef []string
		seen := make(map[string]bool)
		for _, token := range expr.Tokens() {
			if token.Kind != govaluate.VARIABLE {
				continue
			}
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if !seen[varName] {
				seen[varName] = true
				varRef = append(varRef, varName)
			}
			if !varFound[varName] {
				varFound[varName] = true
				parsedExpr.VarList = append(parsedExpr.VarList, varName)
			}
		}
		if len(varRef) == 0 {
			return nil, fmt.Errorf("band expression '%s' does not reference any band", exprText)
		}

		parsedExpr.ExprNames = append(parsedExpr.ExprNames, exprName)
		parsedExpr.ExprText = append(parsedExpr.ExprText, exprText)
		parsedExpr.Expressions = append(parsedExpr.Expressions, expr)
		parsedExpr.ExprVarRef = append(parsedExpr.ExprVarRef, varRef)
	}

	return parsedExpr, nil
}
