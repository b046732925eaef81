package ir

// In-place rewriting helpers shared by the passes. All of them keep the
// use lists consistent so later analyses see the rewritten module.

// Remove deletes an instruction from its block body and drops its
// operand uses. Terminators are not removable this way.
func (b *BasicBlock) Remove(in *Instr) {
	for i, cur := range b.Instructions {
		if cur == in {
			b.Instructions = append(b.Instructions[:i], b.Instructions[i+1:]...)
			break
		}
	}
	for _, a := range in.Args {
		a.RemoveUse(in)
	}
}

// InsertBefore places in ahead of pos in the block body, registering
// operand uses. When pos is the terminator or not found, in is appended
// at the end of the body.
func (b *BasicBlock) InsertBefore(pos, in *Instr) {
	in.Block = b
	for _, a := range in.Args {
		a.AddUse(in)
	}
	for i, cur := range b.Instructions {
		if cur == pos {
			b.Instructions = append(b.Instructions[:i], append([]*Instr{in}, b.Instructions[i:]...)...)
			return
		}
	}
	b.Instructions = append(b.Instructions, in)
}

// ReplaceAllUses rewires every operand referencing old to refer to new.
func ReplaceAllUses(old, new *Value) {
	for _, u := range old.Uses {
		in := u.User
		for i, a := range in.Args {
			if a == old {
				in.Args[i] = new
				new.AddUse(in)
			}
		}
	}
	old.Uses = nil
}

// ForEachInstr visits every body instruction and terminator in the
// function in program order. It visits a snapshot, so a visitor may
// remove the instruction it is handed.
func (f *Function) ForEachInstr(visit func(*BasicBlock, *Instr)) {
	for _, blk := range f.Blocks {
		for _, in := range append([]*Instr(nil), blk.Instructions...) {
			visit(blk, in)
		}
		if blk.Terminator != nil {
			visit(blk, blk.Terminator)
		}
	}
}

// ForEachInstr visits every instruction in every function of the module.
func (m *Module) ForEachInstr(visit func(*Function, *BasicBlock, *Instr)) {
	for _, fn := range m.Functions {
		fn.ForEachInstr(func(blk *BasicBlock, in *Instr) { visit(fn, blk, in) })
	}
}
