package vm

import (
	"encoding/binary"
	"math"
	"slices"
)

// ---------------------------------------------------------------------------
// Code: the homoiconic program tree
// ---------------------------------------------------------------------------

// Opcode identifies a registered instruction within an InstructionTable.
type Opcode uint32

// ListOpcode is reserved for lists. Every InstructionTable registers the list
// instruction first so that opcode 0 always means "this node is a list".
const ListOpcode Opcode = 0

// ListInstructionName is the name registered for ListOpcode.
const ListInstructionName = "__PUSH.LIST"

// DataKind tags the payload carried by a Code node.
type DataKind uint8

const (
	DataNone DataKind = iota
	DataBool
	DataInteger
	DataFloat
	DataName
	DataList
)

var dataKindNames = [...]string{"none", "bool", "integer", "float", "name", "list"}

func (k DataKind) String() string {
	if int(k) < len(dataKindNames) {
		return dataKindNames[k]
	}
	return "unknown"
}

// Data is the inline payload of a Code node. It is a closed sum type: scalar
// literals are stored in bits, names in name, and list children in list.
// A Data value is never mutated after construction.
type Data struct {
	kind   DataKind
	bits   uint64
	name   string
	list   []Code
	points int // cached for lists
}

// NoData is the payload of an instruction that carries nothing.
var NoData = Data{}

// BoolData wraps a boolean literal.
func BoolData(b bool) Data {
	var bits uint64
	if b {
		bits = 1
	}
	return Data{kind: DataBool, bits: bits}
}

// IntegerData wraps an integer literal.
func IntegerData(i int64) Data {
	return Data{kind: DataInteger, bits: uint64(i)}
}

// FloatData wraps a float literal.
func FloatData(f float64) Data {
	return Data{kind: DataFloat, bits: math.Float64bits(f)}
}

// NameData wraps a name literal.
func NameData(name string) Data {
	return Data{kind: DataName, name: name}
}

func (d Data) Kind() DataKind   { return d.kind }
func (d Data) Bool() bool       { return d.bits != 0 }
func (d Data) Integer() int64   { return int64(d.bits) }
func (d Data) Float() float64   { return math.Float64frombits(d.bits) }
func (d Data) Name() string     { return d.name }
func (d Data) isList() bool     { return d.kind == DataList }
func (d Data) children() []Code { return d.list }

// Equal reports structural equality. Floats compare bitwise so that a value is
// always equal to itself.
func (d Data) Equal(o Data) bool {
	if d.kind != o.kind || d.bits != o.bits || d.name != o.name {
		return false
	}
	if d.kind != DataList {
		return true
	}
	if len(d.list) != len(o.list) {
		return false
	}
	for i := range d.list {
		if !d.list[i].Equal(o.list[i]) {
			return false
		}
	}
	return true
}

// Code is one node of a program: an atom (an instruction opcode plus optional
// literal payload) or a list of child nodes. Code values are immutable; every
// operation that "changes" a tree returns a new one.
type Code struct {
	op   Opcode
	data Data
}

// NewAtom creates an atom for the given instruction and payload.
func NewAtom(op Opcode, data Data) Code {
	return Code{op: op, data: data}
}

// NewList creates a list node. The children slice is copied.
func NewList(children ...Code) Code {
	return newListOwned(slices.Clone(children))
}

// newListOwned wraps children without copying. The caller must not retain
// the slice.
func newListOwned(children []Code) Code {
	points := 1
	for _, c := range children {
		points += c.Points()
	}
	return Code{op: ListOpcode, data: Data{kind: DataList, list: children, points: points}}
}

// Opcode returns the instruction id of this node (ListOpcode for lists).
func (c Code) Opcode() Opcode { return c.op }

// Data returns the payload of this node.
func (c Code) Data() Data { return c.data }

// IsList reports whether c is a list.
func (c Code) IsList() bool { return c.data.isList() }

// IsAtom reports whether c is an atom.
func (c Code) IsAtom() bool { return !c.data.isList() }

// Equal reports recursive structural equality.
func (c Code) Equal(o Code) bool {
	return c.op == o.op && c.data.Equal(o.data)
}

// Points returns the number of addressable nodes in c, itself included.
func (c Code) Points() int {
	if c.data.isList() {
		return c.data.points
	}
	return 1
}

// Len returns the number of direct children of a list, or 1 for an atom.
func (c Code) Len() int {
	if c.data.isList() {
		return len(c.data.list)
	}
	return 1
}

// Child returns the i-th direct child of a list.
func (c Code) Child(i int) (Code, bool) {
	if !c.data.isList() || i < 0 || i >= len(c.data.list) {
		return Code{}, false
	}
	return c.data.list[i], true
}

// ToList returns the children of a list, or a one-item slice holding an atom.
// The result is a fresh slice the caller may modify.
func (c Code) ToList() []Code {
	if c.data.isList() {
		return slices.Clone(c.data.list)
	}
	return []Code{c}
}

// Walk visits every node in pre-order, stopping early when fn returns false.
func (c Code) Walk(fn func(Code) bool) bool {
	if !fn(c) {
		return false
	}
	for _, child := range c.data.children() {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Point addressing
// ---------------------------------------------------------------------------

// ExtractPoint returns the node at a pre-order address. Address 0 is c itself.
func (c Code) ExtractPoint(point int) (Code, bool) {
	if point < 0 || point >= c.Points() {
		return Code{}, false
	}
	for point > 0 {
		point-- // step over the enclosing list
		found := false
		for _, child := range c.data.list {
			if point < child.Points() {
				c = child
				found = true
				break
			}
			point -= child.Points()
		}
		if !found {
			return Code{}, false
		}
	}
	return c, true
}

// ReplacePoint returns a copy of c with the node at a pre-order address
// replaced. The second result is the number of addresses walked: point+1 when
// the replacement happened, Points() otherwise. An out of range address
// returns c unchanged.
func (c Code) ReplacePoint(point int, replacement Code) (Code, int) {
	if point == 0 {
		return replacement, 1
	}
	if !c.data.isList() || point < 0 {
		return c, c.Points()
	}

	consumed := 1
	for i, child := range c.data.list {
		remaining := point - consumed
		if remaining < child.Points() {
			replaced, used := child.ReplacePoint(remaining, replacement)
			children := slices.Clone(c.data.list)
			children[i] = replaced
			return newListOwned(children), consumed + used
		}
		consumed += child.Points()
	}
	return c, consumed
}

// ---------------------------------------------------------------------------
// Searching
// ---------------------------------------------------------------------------

// Contains reports whether target appears anywhere beneath c, at any depth.
// Sub-lists count as members.
func (c Code) Contains(target Code) bool {
	for _, child := range c.data.children() {
		if child.Equal(target) || child.Contains(target) {
			return true
		}
	}
	return false
}

// Container returns the smallest list within c (c included) that has target as
// a direct child. The first match in pre-order wins.
func (c Code) Container(target Code) (Code, bool) {
	for _, child := range c.data.children() {
		if child.Equal(target) {
			return c, true
		}
	}
	for _, child := range c.data.children() {
		if child.IsList() {
			if found, ok := child.Container(target); ok {
				return found, true
			}
		}
	}
	return Code{}, false
}

// HasMember reports whether target is a direct child of c. An atom is treated
// as a one-item list.
func (c Code) HasMember(target Code) bool {
	return c.PositionOf(target) >= 0
}

// PositionOf returns the index of target among the direct children of c, or -1.
// An atom is treated as a one-item list.
func (c Code) PositionOf(target Code) int {
	if !c.data.isList() {
		if c.Equal(target) {
			return 0
		}
		return -1
	}
	for i, child := range c.data.list {
		if child.Equal(target) {
			return i
		}
	}
	return -1
}

// ExtractNames returns every name literal in c in pre-order.
func (c Code) ExtractNames() []string {
	var names []string
	c.Walk(func(n Code) bool {
		if n.data.kind == DataName {
			names = append(names, n.data.name)
		}
		return true
	})
	return names
}

// ExtractAtoms returns every leaf of c in pre-order.
func (c Code) ExtractAtoms() []Code {
	var atoms []Code
	c.Walk(func(n Code) bool {
		if n.IsAtom() {
			atoms = append(atoms, n)
		}
		return true
	})
	return atoms
}

// Replace substitutes every occurrence of old within c with replacement.
// A matching node is replaced whole and its interior is not searched.
func (c Code) Replace(old, replacement Code) Code {
	if c.Equal(old) {
		return replacement
	}
	if !c.data.isList() {
		return c
	}
	children := make([]Code, len(c.data.list))
	for i, child := range c.data.list {
		children[i] = child.Replace(old, replacement)
	}
	return newListOwned(children)
}

// ---------------------------------------------------------------------------
// Discrepancy
// ---------------------------------------------------------------------------

// SubtreeIndex assigns every distinct subtree a small integer id. Ids are
// built bottom-up from a node's own payload and the ids of its children, so
// indexing a tree visits each node once. Ids are only comparable within one
// index.
type SubtreeIndex struct {
	ids map[subtreeKey]int
}

type subtreeKey struct {
	op       Opcode
	kind     DataKind
	bits     uint64
	name     string
	children string
}

// NewSubtreeIndex returns an empty index.
func NewSubtreeIndex() *SubtreeIndex {
	return &SubtreeIndex{ids: make(map[subtreeKey]int)}
}

// ID returns the id of c, assigning one if c has not been seen before.
func (x *SubtreeIndex) ID(c Code) int {
	return x.intern(c, nil)
}

// DiscrepancyItems counts every node of c, c itself included, keyed by
// subtree id.
func (x *SubtreeIndex) DiscrepancyItems(c Code) map[int]int {
	items := make(map[int]int)
	x.intern(c, items)
	return items
}

func (x *SubtreeIndex) intern(c Code, counts map[int]int) int {
	k := subtreeKey{op: c.op, kind: c.data.kind, bits: c.data.bits, name: c.data.name}
	if c.data.isList() {
		ids := make([]byte, 0, 2*len(c.data.list))
		for _, child := range c.data.list {
			ids = binary.AppendUvarint(ids, uint64(x.intern(child, counts)))
		}
		k.children = string(ids)
	}
	id, ok := x.ids[k]
	if !ok {
		id = len(x.ids)
		x.ids[k] = id
	}
	if counts != nil {
		counts[id]++
	}
	return id
}

// Discrepancy is a structural distance between two trees: zero when they are
// equal and larger the more their multisets of nodes differ.
func Discrepancy(a, b Code) int64 {
	x := NewSubtreeIndex()
	aItems := x.DiscrepancyItems(a)
	bItems := x.DiscrepancyItems(b)

	var total int64
	for key, aCount := range aItems {
		diff := aCount - bItems[key]
		if diff < 0 {
			diff = -diff
		}
		total += int64(diff)
	}
	for key, bCount := range bItems {
		if _, ok := aItems[key]; !ok {
			total += int64(bCount)
		}
	}
	return total
}
