// Package xmlnode provides a minimal in-memory XML tree, built by pull
// parsing with encoding/xml, for navigating submission instance documents by
// slash-separated path.
package xmlnode

import (
	"encoding/xml"
	"io"
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Node is one element of a parsed submission document. Attribute values and
// element text are both retained since form metadata appears as attributes
// (e.g. submissionDate) while field values appear as element text.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
	parent   *Node
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// Parse pull-parses r into a Node tree rooted at the document element.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var root, cur *Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{
				Name:   localName(t.Name),
				Attrs:  make(map[string]string, len(t.Attr)),
				parent: cur,
			}
			for _, a := range t.Attr {
				n.Attrs[localName(a.Name)] = a.Value
			}
			if cur != nil {
				cur.Children = append(cur.Children, n)
			}
			if root == nil {
				root = n
			}
			cur = n
		case xml.CharData:
			if cur != nil {
				cur.Text += string(t)
			}
		case xml.EndElement:
			if cur != nil {
				cur.Text = strings.TrimSpace(cur.Text)
				cur = cur.parent
			}
		}
	}

	return root, nil
}

func localName(n xml.Name) string {
	return n.Local
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Child returns the first direct child with the given local name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given local name, in
// document order.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Find navigates a slash-separated path of local names from n, returning the
// first matching node, or nil if any segment is missing.
func (n *Node) Find(path string) *Node {
	cur := n
	for _, seg := range splitPath(path) {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// FindAll navigates all but the last path segment, then returns every child
// matching the last segment - used to enumerate repeat instances.
func (n *Node) FindAll(path string) []*Node {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil
	}
	cur := n
	for _, seg := range segs[:len(segs)-1] {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur.ChildrenNamed(segs[len(segs)-1])
}

// Value returns the trimmed text of the node, or "" if n is nil.
func (n *Node) Value() string {
	if n == nil {
		return ""
	}
	return n.Text
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
