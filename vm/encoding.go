package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options so equal trees always encode to equal
// bytes.
var cborEncMode cbor.EncMode

// cborDecMode lifts the array length limit so that a program as large as any
// memory ceiling decodes.
var cborDecMode cbor.DecMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{MaxArrayElements: math.MaxInt32}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// wireNode is one node of the serialized form. A tree is sent as its nodes
// in pre-order; a list node is followed by its Len children, so the encoding
// is flat however deep the tree is.
type wireNode struct {
	_    struct{} `cbor:",toarray"`
	Op   uint32
	Kind uint8
	Bits uint64
	Name string
	Len  uint32
}

func appendWire(nodes []wireNode, c Code) []wireNode {
	w := wireNode{
		Op:   uint32(c.op),
		Kind: uint8(c.data.kind),
		Bits: c.data.bits,
		Name: c.data.name,
	}
	if !c.data.isList() {
		return append(nodes, w)
	}
	w.Len = uint32(len(c.data.list))
	nodes = append(nodes, w)
	for _, child := range c.data.list {
		nodes = appendWire(nodes, child)
	}
	return nodes
}

var errTruncatedCode = errors.New("vm: truncated code")

// fromWire rebuilds a tree from its pre-order nodes without recursion.
func fromWire(nodes []wireNode) (Code, error) {
	type frame struct {
		children []Code
		want     int
	}
	var stack []frame

	for i, w := range nodes {
		kind := DataKind(w.Kind)
		if kind > DataList {
			return Code{}, fmt.Errorf("vm: unknown data kind %d", w.Kind)
		}

		var node Code
		if kind == DataList {
			if Opcode(w.Op) != ListOpcode {
				return Code{}, fmt.Errorf("vm: list node with opcode %d", w.Op)
			}
			if int(w.Len) > len(nodes)-i-1 {
				return Code{}, errTruncatedCode
			}
			if w.Len > 0 {
				stack = append(stack, frame{children: make([]Code, 0, w.Len), want: int(w.Len)})
				continue
			}
			node = newListOwned(nil)
		} else {
			node = Code{op: Opcode(w.Op), data: Data{kind: kind, bits: w.Bits, name: w.Name}}
		}

		for {
			if len(stack) == 0 {
				if i != len(nodes)-1 {
					return Code{}, fmt.Errorf("vm: %d trailing nodes after code", len(nodes)-i-1)
				}
				return node, nil
			}
			top := &stack[len(stack)-1]
			top.children = append(top.children, node)
			if len(top.children) < top.want {
				break
			}
			node = newListOwned(top.children)
			stack = stack[:len(stack)-1]
		}
	}
	return Code{}, errTruncatedCode
}

// MarshalCode serializes a Code tree to canonical CBOR bytes. Opcodes are only
// meaningful to an InstructionTable with the same registration order.
func MarshalCode(c Code) ([]byte, error) {
	return cborEncMode.Marshal(appendWire(make([]wireNode, 0, c.Points()), c))
}

// UnmarshalCode deserializes a Code tree from CBOR bytes.
func UnmarshalCode(data []byte) (Code, error) {
	var nodes []wireNode
	if err := cborDecMode.Unmarshal(data, &nodes); err != nil {
		return Code{}, fmt.Errorf("vm: unmarshal code: %w", err)
	}
	return fromWire(nodes)
}
