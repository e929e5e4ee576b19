package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testProp struct {
	Base
	kind Kind
}

func (p *testProp) Kind() Kind { return p.kind }

func newProp(g *Graph, kind Kind, name string) *testProp {
	p := &testProp{kind: kind}
	p.Name = name
	g.Add(p)
	return p
}

func TestLinkAndQuery(t *testing.T) {
	g := New()
	a := newProp(g, "A", "a")
	b := newProp(g, "B", "b")
	c := newProp(g, "B", "c")

	a.AddRef("list", b, nil)
	a.AddRef("list", c, nil)
	a.SetRef("single", c, nil)

	assert.Equal(t, []Property{b, c}, a.Refs("list"))
	assert.Equal(t, Property(c), a.Ref("single"))
	assert.Equal(t, []Property{a}, c.ListParents())
	assert.Len(t, g.ListParentEdges(c), 2)
	assert.Len(t, g.ListByKind("B"), 2)

	a.SetRef("single", nil, nil)
	assert.Nil(t, a.Ref("single"))
	assert.Len(t, g.ListParentEdges(c), 1)
}

func TestDisposeRemovesEdges(t *testing.T) {
	g := New()
	a := newProp(g, "A", "a")
	b := newProp(g, "B", "b")
	c := newProp(g, "C", "c")
	a.AddRef("list", b, nil)
	b.AddRef("child", c, nil)

	b.Dispose()

	assert.True(t, b.IsDisposed())
	assert.Empty(t, a.Refs("list"))
	assert.Empty(t, c.ListParents())
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []Property{a, c}, g.Properties())
}

func TestRefMapKeepsOrder(t *testing.T) {
	g := New()
	a := newProp(g, "A", "a")
	x := newProp(g, "X", "x")
	y := newProp(g, "X", "y")
	z := newProp(g, "X", "z")

	a.RefMapSet("attributes", "POSITION", x)
	a.RefMapSet("attributes", "NORMAL", y)
	a.RefMapSet("attributes", "POSITION", z)

	assert.Equal(t, []string{"POSITION", "NORMAL"}, a.RefMapKeys("attributes"))
	assert.Equal(t, Property(z), a.RefMapGet("attributes", "POSITION"))
	assert.Empty(t, x.ListParents())
	assert.Equal(t, []Property{a}, z.ListParents())

	a.RefMapSet("attributes", "NORMAL", nil)
	assert.Equal(t, []string{"POSITION"}, a.RefMapKeys("attributes"))
}

func TestExtensionsAndGenerics(t *testing.T) {
	g := New()
	a := newProp(g, "A", "a")
	ext := newProp(g, "EXT_test", "ext")

	a.SetExtension("EXT_test", ext)
	got := ExtensionAs[*testProp](&a.Base, "EXT_test")
	require.NotNil(t, got)
	assert.Equal(t, "ext", got.Name)

	var typedNil *testProp
	a.SetExtension("EXT_test", typedNil)
	assert.Nil(t, a.Extension("EXT_test"))

	props := As[*testProp](g.Properties())
	assert.Len(t, props, 2)
}

func TestEdgeAttributes(t *testing.T) {
	g := New()
	a := newProp(g, "A", "a")
	b := newProp(g, "B", "b")
	e := a.SetRef("baseColorTexture", b, map[string]interface{}{"isColor": true, "channels": 0xf})

	assert.True(t, e.BoolAttr("isColor"))
	assert.False(t, e.BoolAttr("missing"))
	assert.Equal(t, 0xf, e.Attr("channels"))

	g.Unlink(e)
	assert.True(t, e.IsDisposed())
	assert.Empty(t, g.Edges())
}
