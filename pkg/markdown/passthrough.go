package markdown

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

const passthroughRendererPriority = 100

// KindPassthrough is the kind of Passthrough nodes.
var KindPassthrough = ast.NewNodeKind("Passthrough")

// Passthrough holds markup rendered elsewhere. It is written out verbatim,
// so the producer is responsible for escaping.
type Passthrough struct {
	ast.BaseInline
	HTML string
}

func NewPassthrough(html string) *Passthrough {
	return &Passthrough{HTML: html}
}

func (n *Passthrough) Kind() ast.NodeKind {
	return KindPassthrough
}

func (n *Passthrough) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"HTML": n.HTML}, nil)
}

type passthroughRenderer struct{}

func (r *passthroughRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindPassthrough, r.render)
}

func (r *passthroughRenderer) render(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(node.(*Passthrough).HTML)
	}
	return ast.WalkSkipChildren, nil
}

type passthroughExtension struct{}

// PassthroughExtension registers the renderer for Passthrough nodes.
var PassthroughExtension goldmark.Extender = &passthroughExtension{}

func (e *passthroughExtension) Extend(m goldmark.Markdown) {
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&passthroughRenderer{}, passthroughRendererPriority),
	))
}

// replaceNode swaps old for replacement in old's parent.
func replaceNode(old, replacement ast.Node) {
	if parent := old.Parent(); parent != nil {
		parent.ReplaceChild(parent, old, replacement)
	}
}
