package markdown

import (
	"bytes"
	"regexp"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"argc.in/markdownpages/pkg/wiki"
)

// Category syntax has to be claimed before the link parser (200) and the
// wikilink parser (199) see the opening bracket.
const (
	categoryParserPriority      = 100
	categoryTransformerPriority = 100
)

var categoriesKey = parser.NewContextKey()

// The namespace prefix matches in any case.
var categoryPrefix = []byte("[[category:")

// Categories collects category assignments seen during one parse.
type Categories struct {
	names []string
	sorts map[string]string
}

func NewCategories() *Categories {
	return &Categories{sorts: map[string]string{}}
}

// Add records name with its sort key. The last sort key for a name wins.
func (c *Categories) Add(name, sort string) {
	if _, ok := c.sorts[name]; !ok {
		c.names = append(c.names, name)
	}
	c.sorts[name] = sort
}

func (c *Categories) Len() int {
	return len(c.names)
}

// Export copies every category into m.
func (c *Categories) Export(m *wiki.Metadata) {
	for _, name := range c.names {
		m.AddCategory(name, c.sorts[name])
	}
}

// KindCategory is the kind of the transient node left where a category
// link was parsed.
var KindCategory = ast.NewNodeKind("Category")

// Category marks a consumed [[Category:...]] link until the category
// transformer drops it.
type Category struct {
	ast.BaseInline
	Name []byte
	Sort []byte
}

func (n *Category) Kind() ast.NodeKind {
	return KindCategory
}

func (n *Category) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Name": string(n.Name),
		"Sort": string(n.Sort),
	}, nil)
}

type categoryParser struct {
	pattern *regexp.Regexp
}

func newCategoryParser(legalTitleChars string) (*categoryParser, error) {
	pattern, err := regexp.Compile(`^\[\[(?i:category):([` + legalTitleChars + `]+)(?:\|(.+?))?\]\]`)
	if err != nil {
		return nil, errors.Wrap(err, "compile category pattern")
	}
	return &categoryParser{pattern: pattern}, nil
}

func (p *categoryParser) Trigger() []byte {
	return []byte{'['}
}

func (p *categoryParser) Parse(_ ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < len(categoryPrefix) || !bytes.EqualFold(line[:len(categoryPrefix)], categoryPrefix) {
		return nil
	}
	m := p.pattern.FindSubmatch(line)
	if m == nil {
		return nil
	}

	n := &Category{Name: m[1], Sort: m[2]}
	if c, ok := pc.Get(categoriesKey).(*Categories); ok {
		c.Add(string(n.Name), string(n.Sort))
	}
	block.Advance(len(m[0]))
	return n
}

// categoryTransformer removes category markers, and any paragraph that held
// nothing else.
type categoryTransformer struct{}

func (t *categoryTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	var markers []ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == KindCategory {
			markers = append(markers, n)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	source := reader.Source()
	for _, n := range markers {
		parent := n.Parent()
		if parent == nil {
			continue
		}
		parent.RemoveChild(parent, n)
		if (parent.Kind() == ast.KindParagraph || parent.Kind() == ast.KindTextBlock) && blank(parent, source) {
			if grand := parent.Parent(); grand != nil {
				grand.RemoveChild(grand, parent)
			}
		}
	}
}

// blank reports whether n has no children other than whitespace text.
func blank(n ast.Node, source []byte) bool {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok || !util.IsBlank(t.Segment.Value(source)) {
			return false
		}
	}
	return true
}

type categoryExtension struct {
	parser *categoryParser
}

// CategoryExtension recognizes [[Category:Name]] and [[Category:Name|sort]],
// hiding them from the output and reporting them to the Categories stored in
// the parser context.
func CategoryExtension(legalTitleChars string) (goldmark.Extender, error) {
	p, err := newCategoryParser(legalTitleChars)
	if err != nil {
		return nil, err
	}
	return &categoryExtension{parser: p}, nil
}

func (e *categoryExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithInlineParsers(
			util.Prioritized(e.parser, categoryParserPriority),
		),
		parser.WithASTTransformers(
			util.Prioritized(&categoryTransformer{}, categoryTransformerPriority),
		),
	)
}
