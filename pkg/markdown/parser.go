package markdown

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	log "github.com/schollz/logger"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"argc.in/markdownpages/pkg/wiki"
)

// WrapperDivClass is the class requested for the div around page output.
const WrapperDivClass = "mw-parser-output"

// FileResolver renders an embedded file, e.g. the markup for [[File:name]].
// A missing file must come back as placeholder markup, not as an error.
type FileResolver interface {
	ResolveFile(req wiki.FileRequest) (wiki.FileRendering, error)
}

// LinkClassifier normalizes and classifies link destinations.
type LinkClassifier interface {
	RemoveDotSegments(url string) string
	Classify(url string) wiki.LinkClass
}

// TitleResolver turns a link destination into a page title. Invalid titles
// are nil with a nil error.
type TitleResolver interface {
	NewFromText(text string) (*wiki.Title, error)
}

// LinkRenderer renders a link to a local page.
type LinkRenderer interface {
	MakeLink(title wiki.Title, labelHTML string, attrs map[string]string) (string, error)
}

type Config struct {
	// LegalTitleChars is a regexp character class body bounding category
	// names, see wiki.DefaultLegalTitleChars.
	LegalTitleChars string
	// InternalHosts are hosts whose links are not decorated as external.
	InternalHosts []string
	// Extensions are optional goldmark extensions by name.
	Extensions []string

	Files  FileResolver
	URLs   LinkClassifier
	Titles TitleResolver
	Links  LinkRenderer
}

// ConvertOptions describe the page being converted.
type ConvertOptions struct {
	Page  string
	RevID int64
	// SkipHTML returns an empty document without parsing, for callers that
	// only want to know the conversion would succeed.
	SkipHTML bool
}

// Document is the result of a conversion.
type Document struct {
	HTML     string
	Metadata *wiki.Metadata
}

// Parser converts markdown into wiki page HTML. It is safe for concurrent
// use; all per-call state lives in the call.
type Parser struct {
	md            goldmark.Markdown
	config        Config
	internalHosts map[string]struct{}
}

func NewParser(config Config) (*Parser, error) {
	if config.Files == nil || config.URLs == nil || config.Titles == nil || config.Links == nil {
		return nil, errors.New("markdown parser needs file, url, title and link collaborators")
	}
	if config.LegalTitleChars == "" {
		config.LegalTitleChars = wiki.DefaultLegalTitleChars
	}

	categories, err := CategoryExtension(config.LegalTitleChars)
	if err != nil {
		return nil, err
	}
	optional, err := collectExtensions(config.Extensions)
	if err != nil {
		return nil, err
	}

	extensions := append([]goldmark.Extender{
		categories,
		PassthroughExtension,
		SafeExtension,
	}, optional...)

	internalHosts := map[string]struct{}{}
	for _, h := range config.InternalHosts {
		internalHosts[strings.ToLower(h)] = struct{}{}
	}

	return &Parser{
		md:            goldmark.New(goldmark.WithExtensions(extensions...)),
		config:        config,
		internalHosts: internalHosts,
	}, nil
}

func (p *Parser) Convert(markdown string) (*Document, error) {
	return p.ConvertWithOptions(markdown, ConvertOptions{})
}

// ConvertWithOptions renders markdown and collects its metadata. Errors from
// the collaborators are returned unchanged and no HTML is produced.
func (p *Parser) ConvertWithOptions(markdown string, opts ConvertOptions) (*Document, error) {
	doc := &Document{Metadata: wiki.NewMetadata()}
	if opts.SkipHTML {
		return doc, nil
	}

	source := []byte(markdown)
	categories := NewCategories()
	pc := parser.NewContext()
	pc.Set(categoriesKey, categories)
	root := p.md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))

	c := &conversion{
		parser:   p,
		source:   source,
		opts:     opts,
		metadata: doc.Metadata,
	}
	if err := c.rewriteImages(root); err != nil {
		return nil, err
	}
	if err := c.rewriteLinks(root); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, source, root); err != nil {
		return nil, errors.Wrap(err, "render markdown")
	}
	doc.HTML = buf.String()
	doc.Metadata.AddWrapperDivClass(WrapperDivClass)
	categories.Export(doc.Metadata)

	log.Debugf("converted %q: %d categories, %d links, %d external links, %d files",
		opts.Page, categories.Len(), len(doc.Metadata.Links()),
		len(doc.Metadata.ExternalLinks()), len(doc.Metadata.Images()))
	return doc, nil
}

// conversion is the state of one ConvertWithOptions call.
type conversion struct {
	parser   *Parser
	source   []byte
	opts     ConvertOptions
	metadata *wiki.Metadata
}
