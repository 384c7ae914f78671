package diagnose

import (
	"github.com/ppiankov/geotrail/internal/classify"
	"github.com/ppiankov/geotrail/internal/model"
)

// sampleKey names the child that describes an array's first element
const sampleKey = "[sample]"

// shape builds the value-free description of v. Objects list at most
// ShapeListedKeys key names and expand the first ShapeExpandedKeys of them;
// anything deeper than ShapeDepth is marked truncated.
func (d *Diagnoser) shape(v any, depth int) *model.ShapeNode {
	if depth > d.cfg.ShapeDepth {
		return &model.ShapeNode{Type: shapeType(v), Truncated: true}
	}

	switch node := v.(type) {
	case map[string]any:
		keys := classify.SortedKeys(node)
		out := &model.ShapeNode{Type: model.ShapeObject}
		if len(keys) > d.cfg.ShapeListedKeys {
			out.Keys = keys[:d.cfg.ShapeListedKeys]
			out.Truncated = true
		} else {
			out.Keys = keys
		}
		if depth < d.cfg.ShapeDepth {
			expand := keys
			if len(expand) > d.cfg.ShapeExpandedKeys {
				expand = expand[:d.cfg.ShapeExpandedKeys]
				out.Truncated = true
			}
			if len(expand) > 0 {
				out.Children = make(map[string]*model.ShapeNode, len(expand))
			}
			for _, key := range expand {
				out.Children[key] = d.shape(node[key], depth+1)
			}
		}
		return out

	case []any:
		n := len(node)
		out := &model.ShapeNode{Type: model.ShapeArray, ArrayLength: &n}
		if n > 0 && depth < d.cfg.ShapeDepth {
			out.Children = map[string]*model.ShapeNode{sampleKey: d.shape(node[0], depth+1)}
		}
		return out

	case string:
		return &model.ShapeNode{Type: model.ShapeString, StringFormat: classify.ClassifyString(node, d.thresholds).Label()}

	case bool:
		return &model.ShapeNode{Type: model.ShapeBoolean}

	case nil:
		return &model.ShapeNode{Type: model.ShapeNull}
	}

	if n, ok := classify.ToFloat(v); ok {
		return &model.ShapeNode{Type: model.ShapeNumber, NumberRange: classify.ClassifyNumber(n, d.thresholds)}
	}
	return &model.ShapeNode{Type: shapeType(v)}
}

func shapeType(v any) model.ShapeType {
	switch v.(type) {
	case map[string]any:
		return model.ShapeObject
	case []any:
		return model.ShapeArray
	case string:
		return model.ShapeString
	case bool:
		return model.ShapeBoolean
	case nil:
		return model.ShapeNull
	}
	if _, ok := classify.ToFloat(v); ok {
		return model.ShapeNumber
	}
	return model.ShapeUnknown
}

// maxDepth probes nesting depth, looking at the first 5 items of each
// array and the first 10 keys of each object, and stops at limit.
func maxDepth(v any, depth, limit int) int {
	if depth >= limit {
		return depth
	}
	deepest := depth
	switch node := v.(type) {
	case map[string]any:
		keys := classify.SortedKeys(node)
		if len(keys) > 10 {
			keys = keys[:10]
		}
		for _, key := range keys {
			if child := node[key]; classify.IsContainer(child) {
				deepest = max(deepest, maxDepth(child, depth+1, limit))
			}
		}
	case []any:
		for i := 0; i < len(node) && i < 5; i++ {
			if classify.IsContainer(node[i]) {
				deepest = max(deepest, maxDepth(node[i], depth+1, limit))
			}
		}
	}
	return deepest
}

// uniqueKeys collects every key name that appears in the shape tree
func uniqueKeys(n *model.ShapeNode, seen map[string]struct{}) map[string]struct{} {
	if n == nil {
		return seen
	}
	for _, key := range n.Keys {
		seen[key] = struct{}{}
	}
	for _, child := range n.Children {
		uniqueKeys(child, seen)
	}
	return seen
}
