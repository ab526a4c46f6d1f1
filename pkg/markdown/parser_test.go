package markdown

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argc.in/markdownpages/pkg/wiki"
)

type memoryWiki struct {
	pages map[string]bool
	files map[string]*wiki.File
	err   error
}

func (m *memoryWiki) PageExists(t wiki.Title) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.pages[t.PrefixedDBKey()], nil
}

func (m *memoryWiki) FindFile(t wiki.Title) (*wiki.File, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.files[t.DBKey], nil
}

func newMemoryWiki() *memoryWiki {
	return &memoryWiki{
		pages: map[string]bool{"Exists": true},
		files: map[string]*wiki.File{
			"Example.jpg": {Name: "Example.jpg", Width: 100, Height: 50, SHA1: "abc"},
		},
	}
}

func newTestParser(t *testing.T, store *memoryWiki, extensions ...string) *Parser {
	t.Helper()
	config := wiki.DefaultConfig()
	titles, err := wiki.NewTitleParser(config.LegalTitleChars)
	require.NoError(t, err)
	links := wiki.NewLinkRenderer(config, store)

	p, err := NewParser(Config{
		LegalTitleChars: config.LegalTitleChars,
		Extensions:      extensions,
		Files:           wiki.NewFileRenderer(config, titles, store, links),
		URLs:            wiki.NewURLUtils(config.URLProtocols),
		Titles:          titles,
		Links:           links,
	})
	require.NoError(t, err)
	return p
}

func convert(t *testing.T, p *Parser, src string) *Document {
	t.Helper()
	doc, err := p.Convert(src)
	require.NoError(t, err)
	return doc
}

func linkKeys(doc *Document) []string {
	var keys []string
	for _, l := range doc.Metadata.Links() {
		keys = append(keys, l.PrefixedDBKey())
	}
	return keys
}

func TestConvert_CategoryAloneLeavesEmptyBody(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "[[Category:Foo|Bar]]\n")

	assert.Equal(t, "", doc.HTML)
	assert.Equal(t, []wiki.Category{{Name: "Foo", Sort: "Bar"}}, doc.Metadata.Categories())
}

func TestConvert_CategoryInline(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "Some text [[Category:Foo]] more text\n")

	assert.NotContains(t, doc.HTML, "Category")
	assert.NotContains(t, doc.HTML, "[[")
	assert.Contains(t, doc.HTML, "Some text")
	assert.Contains(t, doc.HTML, "more text")
	assert.Equal(t, []wiki.Category{{Name: "Foo", Sort: ""}}, doc.Metadata.Categories())
}

func TestConvert_CategoryPrefixIgnoresCase(t *testing.T) {
	p := newTestParser(t, newMemoryWiki())

	for _, src := range []string{"[[category:Foo|Bar]]\n", "[[CATEGORY:Foo|Bar]]\n", "[[cAtEgOrY:Foo|Bar]]\n"} {
		doc := convert(t, p, src)
		assert.Equal(t, "", doc.HTML, src)
		assert.Equal(t, []wiki.Category{{Name: "Foo", Sort: "Bar"}}, doc.Metadata.Categories(), src)
	}
}

func TestConvert_CategoryLastSortKeyWins(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()),
		"[[Category:Foo|First]]\n\nText\n\n[[Category:Bar]] [[Category:Foo|Second]]\n")

	assert.Equal(t, []wiki.Category{
		{Name: "Foo", Sort: "Second"},
		{Name: "Bar", Sort: ""},
	}, doc.Metadata.Categories())
	assert.Equal(t, "<p>Text</p>\n", doc.HTML)
}

func TestConvert_CategoryWithIllegalCharactersIsNotACategory(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "[[Category:Fo{o]]\n")

	assert.Empty(t, doc.Metadata.Categories())
	assert.Contains(t, doc.HTML, "Category:Fo{o")
}

func TestConvert_CategoryInsideCodeIsLiteral(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "`[[Category:Foo]]`\n")

	assert.Empty(t, doc.Metadata.Categories())
	assert.Contains(t, doc.HTML, "<code>[[Category:Foo]]</code>")
}

func TestConvert_ExternalImageLosesSource(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "![alt](https://example.com/a.png)\n")

	assert.Contains(t, doc.HTML, `<img src="" alt="alt"`)
	assert.NotContains(t, doc.HTML, "example.com")
	assert.Empty(t, doc.Metadata.Images())
}

func TestConvert_LocalImageUsesFileMarkup(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "![alt](Example.jpg)\n")

	assert.Equal(t, `<p><span class="mw-default-size" typeof="mw:File">`+
		`<a href="/wiki/File:Example.jpg" class="mw-file-description">`+
		`<img src="/images/Example.jpg" decoding="async" width="100" height="50" class="mw-file-element" />`+
		`</a></span></p>`+"\n", doc.HTML)
	assert.Equal(t, []wiki.FileUsage{{Name: "Example.jpg", Exists: true, SHA1: "abc"}}, doc.Metadata.Images())
}

func TestConvert_MissingImageIsBrokenMedia(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "![alt](Missing.jpg)\n")

	assert.Contains(t, doc.HTML, `<span class="mw-file-element mw-broken-media">File:Missing.jpg</span>`)
	assert.Contains(t, doc.HTML, `wpDestFile=Missing.jpg`)
	assert.NotContains(t, doc.HTML, "&lt;span")
	assert.Equal(t, []wiki.FileUsage{{Name: "Missing.jpg"}}, doc.Metadata.Images())
}

func TestConvert_ExternalLinksMatchWikitext(t *testing.T) {
	tests := []struct {
		name string
		link string
		want []string
	}{
		{"http", "http://wikiteq.com", []string{"http://wikiteq.com"}},
		{"https", "https://wikiteq.com", []string{"https://wikiteq.com"}},
		{"relative", "//wikiteq.com", []string{"//wikiteq.com"}},
		{"no protocol or slash", "wikiteq.com", nil},
		{"with parens", "https://wikiteq.com/foo()bar", []string{"https://wikiteq.com/foo()bar"}},
		{"with dots", "https://wikiteq.com/foo/./../bar", []string{"https://wikiteq.com/bar"}},
	}
	p := newTestParser(t, newMemoryWiki())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := convert(t, p, "[text]("+tt.link+")")
			assert.Equal(t, tt.want, doc.Metadata.ExternalLinks())
		})
	}
}

func TestConvert_AllDefaultProtocolsAreExternal(t *testing.T) {
	var lines, want []string
	for _, protocol := range wiki.DefaultURLProtocols {
		lines = append(lines, "[text]("+protocol+"wikiteq.com)")
		want = append(want, protocol+"wikiteq.com")
	}
	doc := convert(t, newTestParser(t, newMemoryWiki()), strings.Join(lines, "\n"))

	assert.Equal(t, want, doc.Metadata.ExternalLinks())
}

func TestConvert_UnknownProtocolsAreNotExternal(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()),
		"[text](foo://wikiteq.com)\n[text](bar:wikiteq.com)")

	assert.Empty(t, doc.Metadata.ExternalLinks())
	// foo:// has a host and is left alone
	assert.Contains(t, doc.HTML, `href="foo://wikiteq.com"`)
	assert.Equal(t, []string{"Bar:wikiteq.com"}, linkKeys(doc))
}

func TestConvert_ExternalLinkIsDecorated(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "[text](https://wikiteq.com)\n")

	assert.Equal(t,
		`<p><a href="https://wikiteq.com" class="external" rel="noopener noreferrer">text</a></p>`+"\n",
		doc.HTML)
}

func TestConvert_InternalHostsAreNotDecorated(t *testing.T) {
	store := newMemoryWiki()
	p := newTestParser(t, store)
	p.internalHosts["wikiteq.com"] = struct{}{}

	doc := convert(t, p, "[text](https://wikiteq.com)\n")
	assert.NotContains(t, doc.HTML, "external")
	assert.Equal(t, []string{"https://wikiteq.com"}, doc.Metadata.ExternalLinks())
}

func TestConvert_AutoLinksAreExternal(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "<https://wikiteq.com/x> and <someone@example.com>\n")

	assert.Equal(t, []string{"https://wikiteq.com/x", "mailto:someone@example.com"}, doc.Metadata.ExternalLinks())
	assert.Contains(t, doc.HTML, `class="external"`)
}

func TestConvert_MissingPageIsRedLink(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "[text](MissingPage)\n")

	assert.Equal(t,
		`<p><a href="/index.php?title=MissingPage&amp;action=edit&amp;redlink=1" class="new" title="MissingPage (page does not exist)">text</a></p>`+"\n",
		doc.HTML)
	assert.Equal(t, []string{"MissingPage"}, linkKeys(doc))
}

func TestConvert_ExistingPageIsBlueLink(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), `[*text*](Exists "Hover")`+"\n")

	assert.Equal(t, `<p><a href="/wiki/Exists" title="Hover"><em>text</em></a></p>`+"\n", doc.HTML)
	assert.Equal(t, []string{"Exists"}, linkKeys(doc))
}

func TestConvert_RelativeLinkIsNormalized(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "[a](./Exists) [b](help:topic#Usage) [c](Foo/../Exists)\n")

	assert.Equal(t, []string{"Exists", "Help:Topic", "/Exists"}, linkKeys(doc))
	assert.Contains(t, doc.HTML, `href="/wiki/Exists"`)
	assert.Contains(t, doc.HTML, `title=Help:Topic&amp;action=edit`)
}

func TestConvert_InvalidTitleIsLeftAlone(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "[a](Foo%20Bar) [b](#section)\n")

	assert.Empty(t, doc.Metadata.Links())
	assert.Contains(t, doc.HTML, `<a href="Foo%20Bar">a</a>`)
	assert.Contains(t, doc.HTML, `<a href="#section">b</a>`)
}

func TestConvert_UnsafeLinkIsDropped(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "[text](javascript:alert(1))\n")

	assert.Empty(t, doc.Metadata.ExternalLinks())
	assert.Empty(t, doc.Metadata.Links())
	assert.Equal(t, "<p>text</p>\n", doc.HTML)
}

func TestConvert_RawHTMLIsEscaped(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "<div>block</div>\n\nsome <b>inline</b> html\n")

	assert.Contains(t, doc.HTML, "&lt;div&gt;block&lt;/div&gt;")
	assert.Contains(t, doc.HTML, "some &lt;b&gt;inline&lt;/b&gt; html")
	assert.NotContains(t, doc.HTML, "<b>")
	assert.NotContains(t, doc.HTML, "raw HTML omitted")
}

func TestConvert_ImageInsideInternalLink(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "[![x](Example.jpg)](Exists)\n")

	assert.Contains(t, doc.HTML, `<a href="/wiki/Exists" title="Exists"><span class="mw-default-size"`)
	assert.NotContains(t, doc.HTML, "&lt;")
	assert.Equal(t, []string{"Exists"}, linkKeys(doc))
	assert.Len(t, doc.Metadata.Images(), 1)
}

func TestConvert_IsIdempotent(t *testing.T) {
	p := newTestParser(t, newMemoryWiki())
	src := "# Title\n\n[[Category:Foo|x]]\n\n![i](Example.jpg) [a](Exists) [b](https://wikiteq.com) [c](Missing)\n"

	first := convert(t, p, src)
	second := convert(t, p, src)

	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, first.Metadata, second.Metadata)
}

func TestConvert_WikiLinks(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki(), "wikilink"),
		"[[Exists|label]] [[Missing]] [[Category:Foo]]\n")

	assert.Contains(t, doc.HTML, `<a href="/wiki/Exists" title="Exists">label</a>`)
	assert.Contains(t, doc.HTML, `class="new"`)
	assert.Equal(t, []string{"Exists", "Missing"}, linkKeys(doc))
	assert.Equal(t, []wiki.Category{{Name: "Foo"}}, doc.Metadata.Categories())
}

func TestConvert_CollaboratorErrorsPropagate(t *testing.T) {
	store := newMemoryWiki()
	p := newTestParser(t, store)
	boom := errors.New("database is gone")
	store.err = boom

	_, err := p.Convert("[text](Exists)\n")
	assert.Same(t, boom, err)

	_, err = p.Convert("![x](Example.jpg)\n")
	assert.Same(t, boom, err)

	doc, err := p.Convert("[text](https://wikiteq.com)\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://wikiteq.com"}, doc.Metadata.ExternalLinks())
}

func TestConvert_SkipHTML(t *testing.T) {
	doc, err := newTestParser(t, newMemoryWiki()).ConvertWithOptions("[[Category:Foo]]", ConvertOptions{SkipHTML: true})
	require.NoError(t, err)

	assert.Equal(t, "", doc.HTML)
	assert.Empty(t, doc.Metadata.Categories())
}

func TestConvert_RequestsWrapperClass(t *testing.T) {
	doc := convert(t, newTestParser(t, newMemoryWiki()), "text\n")

	assert.Equal(t, []string{WrapperDivClass}, doc.Metadata.WrapperDivClasses())
	assert.Equal(t, `<div class="mw-parser-output"><p>text</p>`+"\n</div>", doc.Metadata.Wrap(doc.HTML))
}

func TestNewParser_Errors(t *testing.T) {
	store := newMemoryWiki()
	config := wiki.DefaultConfig()
	titles, err := wiki.NewTitleParser(config.LegalTitleChars)
	require.NoError(t, err)
	links := wiki.NewLinkRenderer(config, store)
	valid := Config{
		Files:  wiki.NewFileRenderer(config, titles, store, links),
		URLs:   wiki.NewURLUtils(nil),
		Titles: titles,
		Links:  links,
	}

	_, err = NewParser(valid)
	require.NoError(t, err)

	missing := valid
	missing.Links = nil
	_, err = NewParser(missing)
	assert.Error(t, err)

	unknown := valid
	unknown.Extensions = []string{"nope"}
	_, err = NewParser(unknown)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "table")
	}

	broken := valid
	broken.LegalTitleChars = `\`
	_, err = NewParser(broken)
	assert.Error(t, err)
}

func TestExtensionNames(t *testing.T) {
	names := ExtensionNames()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "wikilink")
	assert.Contains(t, names, "emoji")
}
