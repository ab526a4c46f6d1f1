package markdown

import (
	"bytes"

	wikilink "github.com/abhinav/goldmark-wikilink"
	"github.com/yuin/goldmark"
)

// WikiLinkExtension adds [[Target|label]] links. Those naming a valid title
// are replaced by the link pass; the rest keep the "Target#fragment"
// destination the resolver gives them.
func WikiLinkExtension() goldmark.Extender {
	return &wikilink.Extender{Resolver: destinationResolver{}}
}

type destinationResolver struct{}

func (destinationResolver) ResolveWikilink(n *wikilink.Node) ([]byte, error) {
	return wikilinkDestination(n), nil
}

func wikilinkDestination(n *wikilink.Node) []byte {
	if len(n.Fragment) == 0 {
		return n.Target
	}
	return bytes.Join([][]byte{n.Target, n.Fragment}, []byte{'#'})
}
