package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const calculatorAllowed = "0123456789+-*/()., %abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"

// Calculate evaluates an arithmetic expression and returns the result as
// text. Failures are returned as text too, never as an error, so the model
// can read them.
//
// Supported: + - * / // % ** unary +/-, parentheses, and the functions
// abs, round, min, max and sqrt. Integer operands stay integral except under
// "/" and sqrt.
func Calculate(expression string) string {
	if expression == "" {
		return "Invalid expression"
	}
	for _, ch := range expression {
		if !strings.ContainsRune(calculatorAllowed, ch) {
			return "Invalid expression"
		}
	}

	tokens, err := calcTokenize(expression)
	if err != nil {
		return "Calculation error: " + err.Error()
	}
	p := &calcParser{tokens: tokens}
	val, err := p.parseExpr()
	if err == nil && p.pos < len(p.tokens) {
		err = fmt.Errorf("invalid syntax near %q", p.tokens[p.pos].value)
	}
	if err != nil {
		return "Calculation error: " + err.Error()
	}
	return val.String()
}

// NewCalculatorTool returns the calculator tool.
func NewCalculatorTool() Tool {
	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params struct {
			Expression string `json:"expression"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return json.Marshal("Invalid expression")
		}
		return json.Marshal(Calculate(params.Expression))
	}
	return Tool{
		Func: fn,
		Metadata: ToolMetadata{
			Schema: toolSchema(ToolCalculator, "Evaluate a math expression, e.g. '(42*7)/3'.",
				`{"type": "object", "properties": {"expression": {"type": "string", "description": "Arithmetic using + - * / // % ** and abs, round, min, max, sqrt"}}, "required": ["expression"]}`),
			Timeout: 2 * time.Second,
		},
	}
}

// =============================================================================
// Numbers
// =============================================================================

// calcNum is an int or float operand. Ints are arbitrary precision.
type calcNum struct {
	isFloat bool
	i       *big.Int
	f       float64
}

func intNum(i int64) calcNum       { return calcNum{i: big.NewInt(i)} }
func bigNum(i *big.Int) calcNum    { return calcNum{i: i} }
func floatNum(f float64) calcNum   { return calcNum{isFloat: true, f: f} }
func (n calcNum) isZero() bool     { return n.float() == 0 }
func (n calcNum) isNegative() bool { return n.float() < 0 }

func (n calcNum) float() float64 {
	if n.isFloat {
		return n.f
	}
	f, _ := new(big.Float).SetInt(n.i).Float64()
	return f
}

// String formats like a typical calculator REPL: integers plainly, floats
// with at least one decimal, exponent notation outside [1e-4, 1e16).
func (n calcNum) String() string {
	if !n.isFloat {
		return n.i.String()
	}
	f := n.f
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	exp := math.Floor(math.Log10(math.Abs(f)))
	if exp < -4 || exp >= 16 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// maxPowBits bounds the size of an integer power so one expression cannot
// exhaust memory.
const maxPowBits = 1 << 16

var (
	errDivZero  = errors.New("division by zero")
	errTooLarge = errors.New("integer result too large")
)

// floorDivMod returns Python's floor quotient and a remainder carrying the
// divisor's sign.
func floorDivMod(a, b *big.Int) (*big.Int, *big.Int) {
	q, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 && m.Sign() != b.Sign() {
		q.Sub(q, big.NewInt(1))
		m.Add(m, b)
	}
	return q, m
}

func calcBinary(op string, a, b calcNum) (calcNum, error) {
	bothInt := !a.isFloat && !b.isFloat
	switch op {
	case "+":
		if bothInt {
			return bigNum(new(big.Int).Add(a.i, b.i)), nil
		}
		return floatNum(a.float() + b.float()), nil
	case "-":
		if bothInt {
			return bigNum(new(big.Int).Sub(a.i, b.i)), nil
		}
		return floatNum(a.float() - b.float()), nil
	case "*":
		if bothInt {
			return bigNum(new(big.Int).Mul(a.i, b.i)), nil
		}
		return floatNum(a.float() * b.float()), nil
	case "/":
		if b.isZero() {
			return calcNum{}, errDivZero
		}
		if bothInt {
			f, _ := new(big.Rat).SetFrac(a.i, b.i).Float64()
			return floatNum(f), nil
		}
		return floatNum(a.float() / b.float()), nil
	case "//":
		if b.isZero() {
			return calcNum{}, errDivZero
		}
		if bothInt {
			q, _ := floorDivMod(a.i, b.i)
			return bigNum(q), nil
		}
		return floatNum(math.Floor(a.float() / b.float())), nil
	case "%":
		if b.isZero() {
			return calcNum{}, errors.New("modulo by zero")
		}
		if bothInt {
			_, m := floorDivMod(a.i, b.i)
			return bigNum(m), nil
		}
		m := math.Mod(a.float(), b.float())
		if m != 0 && ((m < 0) != (b.float() < 0)) {
			m += b.float()
		}
		return floatNum(m), nil
	case "**":
		if bothInt && b.i.Sign() >= 0 {
			if a.i.CmpAbs(big.NewInt(1)) > 0 &&
				(!b.i.IsInt64() || b.i.Int64() > maxPowBits ||
					int64(a.i.BitLen()-1)*b.i.Int64() > maxPowBits) {
				return calcNum{}, errTooLarge
			}
			return bigNum(new(big.Int).Exp(a.i, b.i, nil)), nil
		}
		if a.isZero() && b.isNegative() {
			return calcNum{}, errors.New("zero cannot be raised to a negative power")
		}
		return floatNum(math.Pow(a.float(), b.float())), nil
	}
	return calcNum{}, fmt.Errorf("unsupported operator %q", op)
}

// floatToInt truncates an already integral float into an int operand.
func floatToInt(f float64) (calcNum, error) {
	switch {
	case math.IsNaN(f):
		return calcNum{}, errors.New("cannot convert float NaN to integer")
	case math.IsInf(f, 0):
		return calcNum{}, errors.New("cannot convert float infinity to integer")
	}
	i, _ := new(big.Float).SetFloat64(f).Int(nil)
	return bigNum(i), nil
}

// roundInt rounds i to a multiple of 10**(-digits), ties to even.
func roundInt(i *big.Int, digits int64) calcNum {
	if digits >= 0 {
		return bigNum(i)
	}
	if -digits > maxPowBits {
		return intNum(0)
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(-digits), nil)
	q, m := floorDivMod(i, unit)
	switch new(big.Int).Lsh(m, 1).Cmp(unit) {
	case 1:
		q.Add(q, big.NewInt(1))
	case 0:
		if q.Bit(0) == 1 {
			q.Add(q, big.NewInt(1))
		}
	}
	return bigNum(q.Mul(q, unit))
}

// roundFloat rounds the exact binary value of f to digits decimal places,
// ties to even.
func roundFloat(f float64, digits int64) calcNum {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return floatNum(f)
	}
	switch {
	case digits > 330:
		return floatNum(f)
	case digits >= 0:
		r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', int(digits), 64), 64)
		if err != nil {
			return floatNum(f)
		}
		return floatNum(r)
	case digits < -330:
		return floatNum(math.Copysign(0, f))
	}
	scale := math.Pow(10, float64(-digits))
	return floatNum(math.RoundToEven(f/scale) * scale)
}

func calcCall(name string, args []calcNum) (calcNum, error) {
	switch name {
	case "abs":
		if len(args) != 1 {
			return calcNum{}, errors.New("abs() takes exactly one argument")
		}
		if args[0].isFloat {
			return floatNum(math.Abs(args[0].f)), nil
		}
		return bigNum(new(big.Int).Abs(args[0].i)), nil
	case "sqrt":
		if len(args) != 1 {
			return calcNum{}, errors.New("sqrt() takes exactly one argument")
		}
		if args[0].float() < 0 {
			return calcNum{}, errors.New("math domain error")
		}
		return floatNum(math.Sqrt(args[0].float())), nil
	case "round":
		switch len(args) {
		case 1:
			if !args[0].isFloat {
				return args[0], nil
			}
			return floatToInt(math.RoundToEven(args[0].f))
		case 2:
			if args[1].isFloat {
				return calcNum{}, errors.New("round() digits must be an integer")
			}
			if !args[1].i.IsInt64() {
				return calcNum{}, errors.New("round() digits too large")
			}
			digits := args[1].i.Int64()
			if !args[0].isFloat {
				return roundInt(args[0].i, digits), nil
			}
			return roundFloat(args[0].f, digits), nil
		}
		return calcNum{}, errors.New("round() takes one or two arguments")
	case "min", "max":
		if len(args) == 0 {
			return calcNum{}, fmt.Errorf("%s expected at least 1 argument, got 0", name)
		}
		best := args[0]
		for _, a := range args[1:] {
			c := calcCompare(a, best)
			if (name == "min" && c < 0) || (name == "max" && c > 0) {
				best = a
			}
		}
		return best, nil
	}
	return calcNum{}, fmt.Errorf("name '%s' is not defined", name)
}

// calcCompare orders two operands, exactly when both are ints.
func calcCompare(a, b calcNum) int {
	if !a.isFloat && !b.isFloat {
		return a.i.Cmp(b.i)
	}
	x, y := a.float(), b.float()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// =============================================================================
// Tokenizer
// =============================================================================

type calcTokenKind int

const (
	ctNumber calcTokenKind = iota
	ctIdent
	ctOp
	ctLParen
	ctRParen
	ctComma
)

type calcToken struct {
	kind  calcTokenKind
	value string
}

func calcTokenize(expr string) ([]calcToken, error) {
	var tokens []calcToken
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch {
		case ch == ' ':
			i++
		case ch == '(':
			tokens = append(tokens, calcToken{ctLParen, "("})
			i++
		case ch == ')':
			tokens = append(tokens, calcToken{ctRParen, ")"})
			i++
		case ch == ',':
			tokens = append(tokens, calcToken{ctComma, ","})
			i++
		case ch == '*' || ch == '/':
			if i+1 < len(runes) && runes[i+1] == ch {
				tokens = append(tokens, calcToken{ctOp, string([]rune{ch, ch})})
				i += 2
				continue
			}
			tokens = append(tokens, calcToken{ctOp, string(ch)})
			i++
		case ch == '+' || ch == '-' || ch == '%':
			tokens = append(tokens, calcToken{ctOp, string(ch)})
			i++
		case isCalcDigit(ch) || ch == '.':
			start := i
			for i < len(runes) && isCalcDigit(runes[i]) {
				i++
			}
			if i < len(runes) && runes[i] == '.' {
				i++
				for i < len(runes) && isCalcDigit(runes[i]) {
					i++
				}
			}
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j < len(runes) && isCalcDigit(runes[j]) {
					i = j
					for i < len(runes) && isCalcDigit(runes[i]) {
						i++
					}
				}
			}
			lit := string(runes[start:i])
			if lit == "." {
				return nil, errors.New("invalid syntax")
			}
			tokens = append(tokens, calcToken{ctNumber, lit})
		case isCalcIdentStart(ch):
			start := i
			for i < len(runes) && (isCalcIdentStart(runes[i]) || isCalcDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, calcToken{ctIdent, string(runes[start:i])})
		default:
			return nil, fmt.Errorf("unexpected character %q", string(ch))
		}
	}
	return tokens, nil
}

func isCalcDigit(ch rune) bool { return ch >= '0' && ch <= '9' }
func isCalcIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// =============================================================================
// Recursive descent parser
// =============================================================================

type calcParser struct {
	tokens []calcToken
	pos    int
}

func (p *calcParser) peek() *calcToken {
	if p.pos < len(p.tokens) {
		return &p.tokens[p.pos]
	}
	return nil
}

func (p *calcParser) peekOp(ops ...string) (string, bool) {
	t := p.peek()
	if t == nil || t.kind != ctOp {
		return "", false
	}
	for _, op := range ops {
		if t.value == op {
			return op, true
		}
	}
	return "", false
}

// parseExpr handles: term (("+"|"-") term)*
func (p *calcParser) parseExpr() (calcNum, error) {
	left, err := p.parseTerm()
	if err != nil {
		return calcNum{}, err
	}
	for {
		op, ok := p.peekOp("+", "-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return calcNum{}, err
		}
		if left, err = calcBinary(op, left, right); err != nil {
			return calcNum{}, err
		}
	}
}

// parseTerm handles: unary (("*"|"/"|"//"|"%") unary)*
func (p *calcParser) parseTerm() (calcNum, error) {
	left, err := p.parseUnary()
	if err != nil {
		return calcNum{}, err
	}
	for {
		op, ok := p.peekOp("*", "/", "//", "%")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return calcNum{}, err
		}
		if left, err = calcBinary(op, left, right); err != nil {
			return calcNum{}, err
		}
	}
}

// parseUnary handles: ("+"|"-") unary | power
func (p *calcParser) parseUnary() (calcNum, error) {
	if op, ok := p.peekOp("+", "-"); ok {
		p.pos++
		val, err := p.parseUnary()
		if err != nil {
			return calcNum{}, err
		}
		if op == "-" {
			if val.isFloat {
				return floatNum(-val.f), nil
			}
			return bigNum(new(big.Int).Neg(val.i)), nil
		}
		return val, nil
	}
	return p.parsePower()
}

// parsePower handles: primary ("**" unary)?  (right-associative)
func (p *calcParser) parsePower() (calcNum, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return calcNum{}, err
	}
	if _, ok := p.peekOp("**"); ok {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return calcNum{}, err
		}
		return calcBinary("**", base, exp)
	}
	return base, nil
}

// parsePrimary handles: number | ident "(" args ")" | "(" expr ")"
func (p *calcParser) parsePrimary() (calcNum, error) {
	t := p.peek()
	if t == nil {
		return calcNum{}, errors.New("unexpected end of expression")
	}

	switch t.kind {
	case ctNumber:
		p.pos++
		if !strings.ContainsAny(t.value, ".eE") {
			if i, ok := new(big.Int).SetString(t.value, 10); ok {
				return bigNum(i), nil
			}
		}
		f, err := strconv.ParseFloat(t.value, 64)
		if err != nil {
			return calcNum{}, fmt.Errorf("invalid number %q", t.value)
		}
		return floatNum(f), nil

	case ctIdent:
		p.pos++
		name := t.value
		if next := p.peek(); next == nil || next.kind != ctLParen {
			return calcNum{}, fmt.Errorf("name '%s' is not defined", name)
		}
		p.pos++
		var args []calcNum
		if next := p.peek(); next != nil && next.kind == ctRParen {
			p.pos++
			return calcCall(name, args)
		}
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return calcNum{}, err
			}
			args = append(args, arg)
			next := p.peek()
			if next == nil {
				return calcNum{}, errors.New("expected closing parenthesis")
			}
			if next.kind == ctComma {
				p.pos++
				continue
			}
			if next.kind == ctRParen {
				p.pos++
				break
			}
			return calcNum{}, fmt.Errorf("invalid syntax near %q", next.value)
		}
		return calcCall(name, args)

	case ctLParen:
		p.pos++
		val, err := p.parseExpr()
		if err != nil {
			return calcNum{}, err
		}
		if next := p.peek(); next == nil || next.kind != ctRParen {
			return calcNum{}, errors.New("expected closing parenthesis")
		}
		p.pos++
		return val, nil
	}
	return calcNum{}, fmt.Errorf("invalid syntax near %q", t.value)
}
