package markdown

import (
	log "github.com/schollz/logger"
	"github.com/yuin/goldmark/ast"

	"argc.in/markdownpages/pkg/wiki"
)

// rewriteImages empties the source of images hosted elsewhere, so browsers
// never fetch them, and replaces images naming a local file with the file
// markup from the FileResolver.
func (c *conversion) rewriteImages(root ast.Node) error {
	var images []*ast.Image
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			images = append(images, img)
		}
		return ast.WalkContinue, nil
	})

	for _, img := range images {
		dest := string(img.Destination)
		if wiki.HasHost(dest) {
			log.Debugf("dropping external image %q", dest)
			img.Destination = []byte{}
			continue
		}

		rendering, err := c.parser.config.Files.ResolveFile(wiki.FileRequest{
			Name:  dest,
			Page:  c.opts.Page,
			RevID: c.opts.RevID,
		})
		if err != nil {
			return err
		}
		replaceNode(img, NewPassthrough(wiki.StripOuterParagraph(rendering.HTML)))
		c.metadata.MergeTracking(rendering.Tracking)
	}
	return nil
}
