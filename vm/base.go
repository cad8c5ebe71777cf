package vm

import "fmt"

// RegisterBaseInstructions registers the BOOL, INTEGER, FLOAT, NAME, CODE and
// EXEC instructions.
func RegisterBaseInstructions(t *InstructionTable) error {
	return registerAll(t,
		boolInstructions(),
		integerInstructions(),
		floatInstructions(),
		nameInstructions(),
		codeInstructions(),
		execInstructions(),
	)
}

// RegisterLiterals registers the bool, float, integer and name literals. The
// name literal accepts any token, so anything registered afterwards can never
// be parsed. Register domain instructions before calling this.
func RegisterLiterals(t *InstructionTable) error {
	return registerAll(t, literalInstructions())
}

// RegisterBase registers the base instructions followed by the literals.
func RegisterBase(t *InstructionTable) error {
	if err := RegisterBaseInstructions(t); err != nil {
		return err
	}
	return RegisterLiterals(t)
}

func registerAll(t *InstructionTable, groups ...[]Instruction) error {
	for _, group := range groups {
		for _, inst := range group {
			if _, err := t.Register(inst); err != nil {
				return fmt.Errorf("register base instructions: %w", err)
			}
		}
	}
	return nil
}

// NewBaseTable returns a table holding the base instruction set.
func NewBaseTable() *InstructionTable {
	t := NewInstructionTable()
	if err := RegisterBase(t); err != nil {
		panic(err)
	}
	return t
}
