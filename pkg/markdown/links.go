package markdown

import (
	"bytes"
	stdhtml "html"
	"strings"

	wikilink "github.com/abhinav/goldmark-wikilink"
	log "github.com/schollz/logger"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"argc.in/markdownpages/pkg/wiki"
)

var (
	externalClass = []byte("external")
	externalRel   = []byte("noopener noreferrer")
)

// rewriteLinks records external links and replaces links to local pages
// with the wiki's own link markup.
func (c *conversion) rewriteLinks(root ast.Node) error {
	var links []ast.Node
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.Link, *ast.AutoLink, *wikilink.Node:
			links = append(links, n)
		}
		return ast.WalkContinue, nil
	})

	for _, n := range links {
		if err := c.rewriteLink(n); err != nil {
			return err
		}
	}
	return nil
}

func (c *conversion) rewriteLink(n ast.Node) error {
	dest, title := c.destination(n)
	if dest == "" {
		return nil
	}
	c.decorate(n, dest)
	// the renderer refuses these too
	if html.IsDangerousURL([]byte(dest)) {
		return nil
	}

	urls := c.parser.config.URLs
	canonical := urls.RemoveDotSegments(dest)
	switch urls.Classify(canonical) {
	case wiki.LinkExternal:
		c.metadata.AddExternalLink(canonical)
		return nil
	case wiki.LinkForeign:
		return nil
	}

	t, err := c.parser.config.Titles.NewFromText(canonical)
	if err != nil {
		return err
	}
	if t == nil {
		log.Debugf("not a title: %q", canonical)
		return nil
	}
	c.metadata.AddLink(*t)

	label, err := c.label(n)
	if err != nil {
		return err
	}
	attrs := map[string]string{}
	if title != "" {
		attrs["title"] = title
	}
	markup, err := c.parser.config.Links.MakeLink(*t, label, attrs)
	if err != nil {
		return err
	}
	replaceNode(n, NewPassthrough(markup))
	return nil
}

// destination returns the link target and its title attribute.
func (c *conversion) destination(n ast.Node) (string, string) {
	switch n := n.(type) {
	case *ast.Link:
		return string(n.Destination), linkTitle(n.Title)
	case *ast.AutoLink:
		url := n.URL(c.source)
		if n.AutoLinkType == ast.AutoLinkEmail && !bytes.HasPrefix(bytes.ToLower(url), []byte("mailto:")) {
			return "mailto:" + string(url), ""
		}
		return string(url), ""
	case *wikilink.Node:
		return string(wikilinkDestination(n)), ""
	}
	return "", ""
}

func linkTitle(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	return string(util.UnescapePunctuations(util.ResolveNumericReferences(util.ResolveEntityNames(raw))))
}

// decorate marks links to other hosts the way external links are marked in
// wikitext.
func (c *conversion) decorate(n ast.Node, dest string) {
	if n.Kind() != ast.KindLink && n.Kind() != ast.KindAutoLink {
		return
	}
	host := strings.ToLower(wiki.Host(dest))
	if host == "" {
		return
	}
	if _, internal := c.parser.internalHosts[host]; internal {
		return
	}
	n.SetAttributeString("class", externalClass)
	n.SetAttributeString("rel", externalRel)
}

// label renders the visible part of a link.
func (c *conversion) label(n ast.Node) (string, error) {
	if a, ok := n.(*ast.AutoLink); ok {
		return stdhtml.EscapeString(string(a.Label(c.source))), nil
	}
	var buf bytes.Buffer
	r := c.parser.md.Renderer()
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if err := r.Render(&buf, c.source, child); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
