package phaseplane

import (
	"fmt"
	"math"
)

// A Program is a symbolic expression flattened to postfix instructions
// over float64 slots. Compiling once and evaluating many times keeps the
// per-step cost of numeric integration independent of tree shape.

type opcode uint8

const (
	opConst opcode = iota
	opLoad
	opAdd
	opMul
	opPow
	opCall
)

type instr struct {
	op   opcode
	val  float64              // opConst
	slot int                  // opLoad
	n    int                  // opAdd, opMul operand count
	fn   func(float64) float64 // opCall
}

// Program evaluates one compiled expression. Eval is safe for
// concurrent use; each call carries its own stack.
type Program struct {
	code     []instr
	maxStack int
	src      string
}

// Compile flattens e into a Program reading its variables from the
// given slot order. Every free symbol of e must appear in vars.
func Compile(e Expr, vars []string) (*Program, error) {
	slots := make(map[string]int, len(vars))
	for i, v := range vars {
		slots[v] = i
	}
	p := &Program{src: e.String()}
	if err := p.emit(e.Simplify(), slots); err != nil {
		return nil, err
	}
	depth, max := 0, 0
	for _, in := range p.code {
		switch in.op {
		case opConst, opLoad:
			depth++
		case opAdd, opMul:
			depth -= in.n - 1
		case opPow:
			depth--
		}
		if depth > max {
			max = depth
		}
	}
	p.maxStack = max
	return p, nil
}

func (p *Program) emit(e Expr, slots map[string]int) error {
	switch v := e.(type) {
	case *Num:
		p.code = append(p.code, instr{op: opConst, val: v.Float64()})
	case *Sym:
		slot, ok := slots[v.name]
		if !ok {
			return fmt.Errorf("compile %q: symbol %q has no slot", p.src, v.name)
		}
		p.code = append(p.code, instr{op: opLoad, slot: slot})
	case *Add:
		for _, t := range v.terms {
			if err := p.emit(t, slots); err != nil {
				return err
			}
		}
		p.code = append(p.code, instr{op: opAdd, n: len(v.terms)})
	case *Mul:
		for _, f := range v.factors {
			if err := p.emit(f, slots); err != nil {
				return err
			}
		}
		p.code = append(p.code, instr{op: opMul, n: len(v.factors)})
	case *Pow:
		if err := p.emit(v.base, slots); err != nil {
			return err
		}
		if err := p.emit(v.exp, slots); err != nil {
			return err
		}
		p.code = append(p.code, instr{op: opPow})
	case *Call:
		fn, ok := unaryFuncs[v.name]
		if !ok {
			return &UnknownFunctionError{Name: v.name}
		}
		if err := p.emit(v.arg, slots); err != nil {
			return err
		}
		p.code = append(p.code, instr{op: opCall, fn: fn})
	default:
		return fmt.Errorf("compile %q: unsupported node %T", p.src, e)
	}
	return nil
}

// Eval runs the program over the slot values. It returns an EvalError
// when the result is NaN or infinite.
func (p *Program) Eval(vals []float64) (float64, error) {
	stack := make([]float64, 0, p.maxStack)
	for _, in := range p.code {
		switch in.op {
		case opConst:
			stack = append(stack, in.val)
		case opLoad:
			stack = append(stack, vals[in.slot])
		case opAdd:
			acc := 0.0
			base := len(stack) - in.n
			for _, v := range stack[base:] {
				acc += v
			}
			stack = append(stack[:base], acc)
		case opMul:
			acc := 1.0
			base := len(stack) - in.n
			for _, v := range stack[base:] {
				acc *= v
			}
			stack = append(stack[:base], acc)
		case opPow:
			b, e := stack[len(stack)-2], stack[len(stack)-1]
			stack = append(stack[:len(stack)-2], math.Pow(b, e))
		case opCall:
			stack[len(stack)-1] = in.fn(stack[len(stack)-1])
		}
	}
	out := stack[len(stack)-1]
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, &EvalError{Reason: fmt.Sprintf("%s is not finite at %v", p.src, vals)}
	}
	return out, nil
}

// Source returns the rendered expression the program was compiled from.
func (p *Program) Source() string { return p.src }
