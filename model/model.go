// Package model describes the in-memory form schema tree: field order,
// types, repeat boundaries and fully-qualified names. It is consumed
// read-only by the export pipeline; construction from an XForms definition
// is an external collaborator and out of scope for this module.
package model

import "strings"

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Kind identifies the category of a Node.
type Kind int

const (
	KindGroup Kind = iota
	KindRepeat
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindRepeat:
		return "repeat"
	case KindField:
		return "field"
	default:
		return "unknown"
	}
}

// FieldType is the primitive type of a field node.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeDecimal
	TypeBoolean
	TypeDate
	TypeTime
	TypeDateTime
	TypeGeopoint
	TypeGeotrace
	TypeGeoshape
	TypeBinary
	TypeSelectOne
	TypeSelectMulti
)

// Node is one element of the form schema tree. Child order mirrors form
// declaration order. Repeat nodes never directly contain another repeat's
// rows: a nested repeat is its own Node with its own CSV.
type Node struct {
	FQN       string // slash-separated path from the document root
	Name      string // local name
	Kind      Kind
	FieldType FieldType  // meaningful only when Kind == KindField
	Choices   []string   // declared choice values, for select-one/select-multi
	Children  []*Node    // ordered, mirrors declaration order
	Repeat    *Node      // nearest enclosing repeatable ancestor, nil at the document root
}

// Tree is the read-only contract the export core requires of a form
// definition. A concrete form loader (XForms parser) builds one of these;
// this module never constructs a Tree from raw form markup itself.
type Tree interface {
	Root() *Node
	FormID() string
	FormName() string
	FormVersion() string
	IsEncrypted() bool
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New builds a concrete Tree from a pre-built root Node. Used by the bundled
// JSON form loader (cmd/export-core) and by tests.
func New(root *Node, formID, formName, formVersion string, encrypted bool) Tree {
	return &tree{
		root:        root,
		formID:      formID,
		formName:    formName,
		formVersion: formVersion,
		encrypted:   encrypted,
	}
}

type tree struct {
	root        *Node
	formID      string
	formName    string
	formVersion string
	encrypted   bool
}

func (t *tree) Root() *Node          { return t.root }
func (t *tree) FormID() string       { return t.formID }
func (t *tree) FormName() string     { return t.formName }
func (t *tree) FormVersion() string  { return t.formVersion }
func (t *tree) IsEncrypted() bool    { return t.encrypted }

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ChildrenOf returns the ordered children of a node (nil-safe).
func ChildrenOf(n *Node) []*Node {
	if n == nil {
		return nil
	}
	return n.Children
}

// FQN returns the canonical slash-joined path for a node.
func FQN(n *Node) string {
	if n == nil {
		return ""
	}
	return n.FQN
}

// RepeatableFields returns every descendant node of kind Repeat, in
// depth-first pre-order.
func RepeatableFields(root *Node) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Kind == KindRepeat {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// Build assigns FQN and Repeat back-references to a freshly constructed
// tree, given only Name/Kind/FieldType/Children populated. It is the one
// place back-pointers are resolved, as index references into the tree
// rather than owning links (per the no-cyclic-ownership design note).
func Build(root *Node) {
	var walk func(n *Node, parentFQN string, nearestRepeat *Node)
	walk = func(n *Node, parentFQN string, nearestRepeat *Node) {
		if n == nil {
			return
		}
		if parentFQN == "" {
			n.FQN = n.Name
		} else {
			n.FQN = parentFQN + "/" + n.Name
		}
		n.Repeat = nearestRepeat
		childRepeat := nearestRepeat
		if n.Kind == KindRepeat {
			childRepeat = n
		}
		for _, c := range n.Children {
			walk(c, n.FQN, childRepeat)
		}
	}
	walk(root, "", nil)
}

// SafeName strips characters outside [A-Za-z0-9._-] from a form or field
// name, replacing each with '_', for use as a filesystem-safe component.
func SafeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
