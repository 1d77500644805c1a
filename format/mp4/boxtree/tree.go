// Package boxtree keeps the box hierarchy of an ISO-BMFF file in a flat arena.
// Nodes refer to each other by NodeID, never by pointer, so a tree can be
// walked and shared freely once built.
package boxtree

import (
	"bytes"
	"fmt"
	"io"

	mp4 "github.com/abema/go-mp4"
)

// NodeID addresses a node inside a Tree.
type NodeID int32

// Nil marks a missing node.
const Nil NodeID = -1

// Root is the synthetic node every top-level box hangs from.
const Root NodeID = 0

// Node is one box of the file.
type Node struct {
	Type       mp4.BoxType
	Offset     uint64
	Size       uint64
	HeaderSize uint64

	Parent      NodeID
	FirstChild  NodeID
	NextSibling NodeID
	lastChild   NodeID

	// Box is the decoded payload for the boxes the index needs; nil otherwise.
	Box mp4.IBox
	// Raw keeps the payload bytes of codec configuration boxes.
	Raw []byte
	// QuickTime is set when the box was decoded in a QuickTime context.
	QuickTime bool
}

// Tree is an arena of boxes.
type Tree struct {
	nodes []Node
}

var containers = map[mp4.BoxType]bool{
	mp4.BoxTypeMoov(): true,
	mp4.BoxTypeTrak(): true,
	mp4.BoxTypeMdia(): true,
	mp4.BoxTypeMinf(): true,
	mp4.BoxTypeStbl(): true,
	mp4.BoxTypeEdts(): true,
	mp4.BoxTypeStsd(): true,
	mp4.BoxTypeWave(): true,
}

var decoded = map[mp4.BoxType]bool{
	mp4.BoxTypeFtyp(): true,
	mp4.BoxTypeMvhd(): true,
	mp4.BoxTypeTkhd(): true,
	mp4.BoxTypeMdhd(): true,
	mp4.BoxTypeHdlr(): true,
	mp4.BoxTypeStco(): true,
	mp4.BoxTypeCo64(): true,
	mp4.BoxTypeStsc(): true,
	mp4.BoxTypeStsz(): true,
	mp4.BoxTypeStts(): true,
	mp4.BoxTypeCtts(): true,
	mp4.BoxTypeStss(): true,
	mp4.BoxTypeElst(): true,
	mp4.BoxTypeEsds(): true,
	mp4.BoxTypeDOps(): true,
	mp4.BoxTypeAvcC(): true,
	mp4.BoxTypeHvcC(): true,
}

var configs = map[mp4.BoxType]bool{
	mp4.BoxTypeAvcC(): true,
	mp4.BoxTypeHvcC(): true,
	mp4.BoxTypeAv1C(): true,
	mp4.BoxTypeVpcC(): true,
	mp4.BoxTypeDOps(): true,
	mp4.BoxTypeDAC3(): true,
}

func newTree() *Tree {
	return &Tree{nodes: []Node{{Parent: Nil, FirstChild: Nil, NextSibling: Nil, lastChild: Nil}}}
}

func (t *Tree) add(parent NodeID, bi mp4.BoxInfo) NodeID {
	id := NodeID(len(t.nodes)) //nolint:gosec
	t.nodes = append(t.nodes, Node{
		Type:        bi.Type,
		Offset:      bi.Offset,
		Size:        bi.Size,
		HeaderSize:  bi.HeaderSize,
		Parent:      parent,
		FirstChild:  Nil,
		NextSibling: Nil,
		lastChild:   Nil,
		QuickTime:   bi.IsQuickTimeCompatible,
	})
	p := &t.nodes[parent]
	if p.lastChild == Nil {
		p.FirstChild = id
	} else {
		t.nodes[p.lastChild].NextSibling = id
	}
	p.lastChild = id
	return id
}

// Read parses the box structure of r. Sample data is never read; only the
// boxes describing tracks are decoded.
func Read(r io.ReadSeeker) (*Tree, error) {
	t := newTree()
	parents := []NodeID{Root}

	_, err := mp4.ReadBoxStructure(r, func(h *mp4.ReadHandle) (interface{}, error) {
		id := t.add(parents[len(parents)-1], h.BoxInfo)
		typ := h.BoxInfo.Type

		if !h.BoxInfo.IsSupportedType() || typ == mp4.BoxTypeMdat() {
			return nil, nil
		}

		if configs[typ] {
			var buf bytes.Buffer
			if _, err := h.ReadData(&buf); err != nil {
				return nil, fmt.Errorf("read %s: %w", typ, err)
			}
			t.nodes[id].Raw = buf.Bytes()
		}

		if containers[typ] || isSampleEntry(h.Path) {
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", typ, err)
			}
			t.nodes[id].Box = box
			parents = append(parents, id)
			_, err = h.Expand()
			parents = parents[:len(parents)-1]
			if err != nil {
				return nil, fmt.Errorf("expand %s: %w", typ, err)
			}
			return nil, nil
		}

		if decoded[typ] {
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", typ, err)
			}
			t.nodes[id].Box = box
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func isSampleEntry(path mp4.BoxPath) bool {
	return len(path) >= 2 && path[len(path)-2] == mp4.BoxTypeStsd() //nolint:mnd
}

// Len returns the number of boxes, not counting the root.
func (t *Tree) Len() int {
	return len(t.nodes) - 1
}

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Children returns the direct children of id in file order.
func (t *Tree) Children(id NodeID) []NodeID {
	if id == Nil {
		return nil
	}
	var out []NodeID
	for c := t.nodes[id].FirstChild; c != Nil; c = t.nodes[c].NextSibling {
		out = append(out, c)
	}
	return out
}

// ChildrenOf returns the direct children of id with the given type.
func (t *Tree) ChildrenOf(id NodeID, typ mp4.BoxType) []NodeID {
	if id == Nil {
		return nil
	}
	var out []NodeID
	for c := t.nodes[id].FirstChild; c != Nil; c = t.nodes[c].NextSibling {
		if t.nodes[c].Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first direct child of id with the given type, or Nil.
// Lookups from Nil yield Nil.
func (t *Tree) Child(id NodeID, typ mp4.BoxType) NodeID {
	if id == Nil {
		return Nil
	}
	for c := t.nodes[id].FirstChild; c != Nil; c = t.nodes[c].NextSibling {
		if t.nodes[c].Type == typ {
			return c
		}
	}
	return Nil
}

// Find follows path from id, taking the first match at each level.
func (t *Tree) Find(id NodeID, path ...mp4.BoxType) NodeID {
	for _, typ := range path {
		if id = t.Child(id, typ); id == Nil {
			return Nil
		}
	}
	return id
}

// Descendant returns the first node of the given type below id in
// depth-first order, or Nil.
func (t *Tree) Descendant(id NodeID, typ mp4.BoxType) NodeID {
	if id == Nil {
		return Nil
	}
	for c := t.nodes[id].FirstChild; c != Nil; c = t.nodes[c].NextSibling {
		if t.nodes[c].Type == typ {
			return c
		}
		if d := t.Descendant(c, typ); d != Nil {
			return d
		}
	}
	return Nil
}

// Walk visits every node below id depth-first. Returning false from fn skips
// the children of that node.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, depth int) bool) {
	t.walk(id, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(NodeID, int) bool) {
	for c := t.nodes[id].FirstChild; c != Nil; c = t.nodes[c].NextSibling {
		if fn(c, depth) {
			t.walk(c, depth+1, fn)
		}
	}
}

// Payload returns the decoded box of id when it has the requested type.
func Payload[T mp4.IBox](t *Tree, id NodeID) (T, bool) {
	var zero T
	if id == Nil {
		return zero, false
	}
	b, ok := t.nodes[id].Box.(T)
	return b, ok
}
