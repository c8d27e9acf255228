package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/remoteq/internal/ir"
)

var binarySymbols = map[string]string{
	"Add": "+", "AddChecked": "+", "Subtract": "-", "SubtractChecked": "-",
	"Multiply": "*", "MultiplyChecked": "*", "Divide": "/", "Modulo": "%",
	"And": "&", "Or": "|", "ExclusiveOr": "^", "AndAlso": "&&", "OrElse": "||",
	"Equal": "==", "NotEqual": "!=", "LessThan": "<", "LessThanOrEqual": "<=",
	"GreaterThan": ">", "GreaterThanOrEqual": ">=", "LeftShift": "<<",
	"RightShift": ">>", "Coalesce": "??",
}

var unaryPrefixes = map[string]string{
	"Not": "!", "Negate": "-", "NegateChecked": "-", "UnaryPlus": "+",
}

// Format renders a tree as one line of lambda notation, for example
// "x => Contains(x.Xs, 19)". Format never fails; unknown or malformed
// parts render as placeholders so that invalid requests can be shown too.
func Format(n *Node) string {
	var b strings.Builder
	format(&b, n)
	return b.String()
}

func format(b *strings.Builder, n *Node) {
	if n == nil {
		b.WriteString("<nil>")
		return
	}
	switch n.Kind {
	case KindConstant:
		b.WriteString(literal(n.LiteralValue))
	case KindParameter:
		b.WriteString(n.OperationName)
	case KindLambda:
		params := n.Children[:max(len(n.Children)-1, 0)]
		if len(params) == 1 {
			format(b, params[0])
		} else {
			b.WriteByte('(')
			list(b, params)
			b.WriteByte(')')
		}
		b.WriteString(" => ")
		format(b, n.Child(len(n.Children)-1))
	case KindMemberAccess:
		format(b, n.Child(0))
		b.WriteByte('.')
		b.WriteString(n.OperationName)
	case KindCall:
		if recv := n.Child(0); recv != nil {
			format(b, recv)
			b.WriteByte('.')
		}
		b.WriteString(n.OperationName)
		b.WriteByte('(')
		if len(n.Children) > 1 {
			list(b, n.Children[1:])
		}
		b.WriteByte(')')
	case KindBinary:
		if n.OperationName == "ArrayIndex" {
			format(b, n.Child(0))
			b.WriteByte('[')
			format(b, n.Child(1))
			b.WriteByte(']')
			return
		}
		sym, ok := binarySymbols[n.OperationName]
		if !ok {
			sym = n.OperationName
		}
		b.WriteByte('(')
		format(b, n.Child(0))
		fmt.Fprintf(b, " %s ", sym)
		format(b, n.Child(1))
		b.WriteByte(')')
	case KindUnary:
		unary(b, n)
	case KindConditional:
		b.WriteByte('(')
		format(b, n.Child(0))
		b.WriteString(" ? ")
		format(b, n.Child(1))
		b.WriteString(" : ")
		format(b, n.Child(2))
		b.WriteByte(')')
	case KindInvoke:
		format(b, n.Child(0))
		b.WriteByte('(')
		if len(n.Children) > 1 {
			list(b, n.Children[1:])
		}
		b.WriteByte(')')
	case KindTypeIs:
		b.WriteByte('(')
		format(b, n.Child(0))
		fmt.Fprintf(b, " is %s)", n.OperationName)
	case KindNew:
		fmt.Fprintf(b, "new %s(", n.DeclaredTypeName)
		if len(n.Children) > 1 {
			list(b, n.Children[1:])
		}
		b.WriteByte(')')
	case KindMemberInit:
		format(b, n.Child(0))
		b.WriteString(" { ")
		for i, m := range n.Children[min(1, len(n.Children)):] {
			if i > 0 {
				b.WriteString(", ")
			}
			if m == nil {
				b.WriteString("<nil>")
				continue
			}
			b.WriteString(m.OperationName)
			b.WriteString(" = ")
			format(b, m.Child(0))
		}
		b.WriteString(" }")
	case KindListInit:
		format(b, n.Child(0))
		b.WriteString(" { ")
		for i, e := range n.Children[min(1, len(n.Children)):] {
			if i > 0 {
				b.WriteString(", ")
			}
			if e == nil || len(e.Children) < 2 {
				b.WriteString("<nil>")
				continue
			}
			list(b, e.Children[1:])
		}
		b.WriteString(" }")
	case KindNewArray:
		if n.OperationName == "Bounds" {
			fmt.Fprintf(b, "new %s[", elemName(n.DeclaredTypeName))
			format(b, n.Child(0))
			b.WriteByte(']')
			return
		}
		fmt.Fprintf(b, "new %s[] { ", elemName(n.DeclaredTypeName))
		list(b, n.Children)
		b.WriteString(" }")
	default:
		fmt.Fprintf(b, "<%s>", n.Kind)
	}
}

func unary(b *strings.Builder, n *Node) {
	operand := n.Child(0)
	if prefix, ok := unaryPrefixes[n.OperationName]; ok {
		b.WriteString(prefix)
		format(b, operand)
		return
	}
	switch n.OperationName {
	case "Quote":
		format(b, operand)
	case "Convert", "ConvertChecked":
		fmt.Fprintf(b, "(%s)", n.DeclaredTypeName)
		format(b, operand)
	case "TypeAs":
		b.WriteByte('(')
		format(b, operand)
		fmt.Fprintf(b, " as %s)", n.DeclaredTypeName)
	case "ArrayLength":
		format(b, operand)
		b.WriteString(".Length")
	default:
		fmt.Fprintf(b, "%s(", n.OperationName)
		format(b, operand)
		b.WriteByte(')')
	}
}

func list(b *strings.Builder, ns []*Node) {
	for i, c := range ns {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, c)
	}
}

func literal(v ir.IRValue) string {
	if v == nil {
		return "<nil>"
	}
	raw, err := ir.MarshalIRValue(v)
	if err != nil {
		return "<invalid>"
	}
	return string(raw)
}

// elemName strips the Seq[...] wrapper from an array type name.
func elemName(seq string) string {
	if strings.HasPrefix(seq, "Seq[") && strings.HasSuffix(seq, "]") {
		return seq[len("Seq[") : len(seq)-1]
	}
	return seq
}

// FormatFilterSortPage renders a record request as one stage per line.
func FormatFilterSortPage(req *FilterSortPageRequest) string {
	var lines []string
	if req.Filter != nil {
		lines = append(lines, "where "+Format(req.Filter))
	}
	if req.Sort != nil {
		lines = append(lines, fmt.Sprintf("order %s by %s", req.Sort.Direction, Format(req.Sort.KeySelector)))
	}
	if req.Skip != nil {
		lines = append(lines, fmt.Sprintf("skip %d", *req.Skip))
	}
	if req.Take != nil {
		lines = append(lines, fmt.Sprintf("take %d", *req.Take))
	}
	if len(lines) == 0 {
		return "all"
	}
	return strings.Join(lines, "\n")
}

// FormatCount renders a count request.
func FormatCount(req *CountRequest) string {
	if req.Filter == nil {
		return "count"
	}
	return "count where " + Format(req.Filter)
}
