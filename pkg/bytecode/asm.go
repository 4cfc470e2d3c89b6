package bytecode

import (
	"bufio"
	"strconv"
	"strings"
)

// DefaultProcessName is used for instructions that precede any
// .process directive.
const DefaultProcessName = "main"

// Assemble translates the line-oriented text form into a Module.
//
//	; comment
//	.process main
//	    PUSH_INT 2
//	loop:
//	    PUSH_STR "loop"
//	    JUMP
//
// PUSH_STR takes a quoted string and PUSH_NAME a quoted string or bare
// identifier; both are interned in the module pool. Either also accepts
// a raw pool index. Every other operand is a decimal integer.
func Assemble(src string) (*Module, error) {
	m := NewModule()
	a := &assembler{module: m}

	sc := bufio.NewScanner(strings.NewReader(src))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := a.line(strings.TrimSpace(sc.Text())); err != nil {
			return nil, &Error{Kind: ErrAssemble, Msg: "line " + strconv.Itoa(lineNo), Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &Error{Kind: ErrAssemble, Msg: "read source", Err: err}
	}
	a.flush()
	return m, nil
}

type assembler struct {
	module  *Module
	current *ProcessCode
}

func (a *assembler) proc() *ProcessCode {
	if a.current == nil {
		a.current = &ProcessCode{Name: DefaultProcessName, Labels: map[string]int{}}
	}
	return a.current
}

func (a *assembler) flush() {
	if a.current != nil {
		if len(a.current.Labels) == 0 {
			a.current.Labels = nil
		}
		a.module.Processes = append(a.module.Processes, *a.current)
		a.current = nil
	}
}

func (a *assembler) line(text string) error {
	if text == "" || strings.HasPrefix(text, ";") {
		return nil
	}

	if rest, ok := strings.CutPrefix(text, ".process"); ok {
		name := strings.TrimSpace(stripComment(rest))
		if name == "" {
			return errorf(ErrAssemble, ".process needs a name")
		}
		if _, dup := a.module.Process(name); dup || (a.current != nil && a.current.Name == name) {
			return errorf(ErrAssemble, "duplicate process %q", name)
		}
		a.flush()
		a.current = &ProcessCode{Name: name, Labels: map[string]int{}}
		return nil
	}

	if label, ok := strings.CutSuffix(stripComment(text), ":"); ok && isIdent(label) {
		p := a.proc()
		if _, dup := p.Labels[label]; dup {
			return errorf(ErrAssemble, "duplicate label %q", label)
		}
		p.Labels[label] = len(p.Code)
		return nil
	}

	mnemonic, rest := text, ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		mnemonic, rest = text[:i], text[i:]
	}
	mnemonic = strings.ToUpper(stripComment(mnemonic))
	op, ok := LookupOpcode(mnemonic)
	if !ok {
		return errorf(ErrAssemble, "unknown mnemonic %q", mnemonic)
	}
	rest = strings.TrimSpace(rest)

	inst := Instruction{Op: op}
	switch {
	case !op.HasOperand():
		if stripComment(rest) != "" {
			return errorf(ErrAssemble, "%s takes no operand", op)
		}
	case op == OpPushStr || op == OpPushName:
		arg, err := a.textOperand(op, rest)
		if err != nil {
			return err
		}
		inst.Arg = arg
	case op == OpPushBool:
		switch stripComment(rest) {
		case "true", "1":
			inst.Arg = 1
		case "false", "0":
			inst.Arg = 0
		default:
			return errorf(ErrAssemble, "PUSH_BOOL needs true or false, got %q", rest)
		}
	default:
		n, err := strconv.ParseInt(stripComment(rest), 10, 64)
		if err != nil {
			return errorf(ErrAssemble, "%s needs an integer operand, got %q", op, rest)
		}
		inst.Arg = n
	}

	p := a.proc()
	p.Code = append(p.Code, inst)
	return nil
}

func (a *assembler) textOperand(op Opcode, rest string) (int64, error) {
	if strings.HasPrefix(rest, "\"") {
		quoted, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return 0, errorf(ErrAssemble, "bad string literal %s", rest)
		}
		if tail := strings.TrimSpace(rest[len(quoted):]); tail != "" && !strings.HasPrefix(tail, ";") {
			return 0, errorf(ErrAssemble, "unexpected %q after string literal", tail)
		}
		s, _ := strconv.Unquote(quoted)
		if op == OpPushName {
			return int64(a.module.Pool.AddIdent(s)), nil
		}
		return int64(a.module.Pool.AddString(s)), nil
	}
	rest = stripComment(rest)
	if n, err := strconv.ParseInt(rest, 10, 64); err == nil {
		return n, nil
	}
	if op == OpPushName && rest != "" && !strings.ContainsAny(rest, " \t") {
		return int64(a.module.Pool.AddIdent(rest)), nil
	}
	return 0, errorf(ErrAssemble, "%s needs a string literal or pool index, got %q", op, rest)
}

func stripComment(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
