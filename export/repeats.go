package export

import (
	"fmt"

	csvmap "github.com/opendatakit-go/export-core/csvmap"
	model "github.com/opendatakit-go/export-core/model"
	xmlnode "github.com/opendatakit-go/export-core/xmlnode"
)

// walkRepeats descends the model tree in lockstep with the parsed document,
// synthesizing a KEY for every repeat instance and recording its row against
// the owning repeat node. PARENT_KEY is the nearest enclosing repeat's
// synthesized key, or the main row's key at depth 1.
func walkRepeats(node *model.Node, ctx *xmlnode.Node, currentKey string, cols map[*model.Node][]model.ColumnSpec, out map[*model.Node][][]string) {
	if ctx == nil {
		return
	}
	for _, child := range node.Children {
		switch child.Kind {
		case model.KindGroup:
			walkRepeats(child, ctx.Child(child.Name), currentKey, cols, out)
		case model.KindRepeat:
			instances := ctx.ChildrenNamed(child.Name)
			spec := cols[child]
			for i, inst := range instances {
				key := fmt.Sprintf("%s/%s[%d]", currentKey, child.Name, i+1)
				row := csvmap.RepeatRow(inst, child, spec, currentKey, key)
				out[child] = append(out[child], row)
				walkRepeats(child, inst, key, cols, out)
			}
		default:
			// leaf field: no repeat rows to discover
		}
	}
}
