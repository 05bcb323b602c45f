package model

import "strings"

// RelativePath returns the path of n below ancestor (ancestor's own FQN
// stripped), suitable for navigating an xmlnode.Node rooted at the element
// that corresponds to ancestor (e.g. one repeat instance).
func RelativePath(n, ancestor *Node) string {
	if n == nil {
		return ""
	}
	if ancestor == nil {
		return n.FQN
	}
	rel := strings.TrimPrefix(n.FQN, ancestor.FQN)
	return strings.TrimPrefix(rel, "/")
}
