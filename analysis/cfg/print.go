package cfg

import (
	"fmt"
	"strings"
)

// String renders a block with its instructions and terminator.
func (b *Block) String() string {
	header := b.ID.String() + ":"
	if b.Handler != NoBlock {
		header += " (handler " + b.Handler.String() + ")"
	}

	var sb strings.Builder
	sb.WriteString(header)
	for _, instr := range b.Instrs {
		sb.WriteString("\n  " + instr.String())
	}
	if b.Term != nil {
		sb.WriteString("\n  " + b.Term.String())
	} else {
		sb.WriteString("\n  <unterminated>")
	}
	return sb.String()
}

// String renders the signature, slot table and blocks of a method.
func (m *Method) String() string {
	params := make([]string, len(m.Params))
	for idx, p := range m.Params {
		params[idx] = p.String()
	}

	slots := make([]string, 0, len(m.Slots))
	for idx, info := range m.Slots {
		if info.Name != "" {
			slots = append(slots, fmt.Sprintf("%s = %s", Slot(idx), info.Name))
		}
	}

	blocks := make([]string, len(m.Blocks))
	for idx, b := range m.Blocks {
		blocks[idx] = b.String()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(%s) %d results\n", m.Name, strings.Join(params, ", "), m.Results)
	if len(slots) > 0 {
		fmt.Fprintf(&sb, "slots: %s\n", strings.Join(slots, ", "))
	}
	sb.WriteString(strings.Join(blocks, "\n"))
	sb.WriteString("\n")
	return sb.String()
}

// String renders every method of the program, grouped by unit.
func (p *Program) String() string {
	var sb strings.Builder
	for _, u := range p.Units {
		fmt.Fprintf(&sb, "unit %s\n", u.Name)
		for _, mid := range u.Methods {
			sb.WriteString(p.Methods[mid].String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
