package wiki

import (
	"regexp"
	"strings"
)

// Category is one category assignment with its sort key.
type Category struct {
	Name string
	Sort string
}

// FileUsage records that a page embeds a file.
type FileUsage struct {
	Name      string // db key within the File namespace
	Exists    bool
	SHA1      string
	Timestamp string
}

// Tracking is the metadata a collaborator hands back alongside rendered
// markup, to be merged into the caller's Metadata.
type Tracking struct {
	Images        []FileUsage
	Templates     []Title
	Links         []Title
	ExternalLinks []string
}

// Metadata accumulates everything a conversion learns about a page. Every
// record set keeps first-insertion order and ignores duplicates.
type Metadata struct {
	categories    []Category
	categoryIndex map[string]int

	links     []Title
	linkIndex map[string]struct{}

	externalLinks []string
	externalIndex map[string]struct{}

	images     []FileUsage
	imageIndex map[string]int

	templates     []Title
	templateIndex map[string]struct{}

	wrapperClasses []string
}

// NewMetadata returns an empty sink.
func NewMetadata() *Metadata {
	return &Metadata{
		categoryIndex: map[string]int{},
		linkIndex:     map[string]struct{}{},
		externalIndex: map[string]struct{}{},
		imageIndex:    map[string]int{},
		templateIndex: map[string]struct{}{},
	}
}

// AddCategory records a category; a repeated name replaces the sort key.
func (m *Metadata) AddCategory(name, sort string) {
	if i, ok := m.categoryIndex[name]; ok {
		m.categories[i].Sort = sort
		return
	}
	m.categoryIndex[name] = len(m.categories)
	m.categories = append(m.categories, Category{Name: name, Sort: sort})
}

// AddLink records a link to a local page. Fragments are not part of the key.
func (m *Metadata) AddLink(t Title) {
	t.Fragment = ""
	key := t.PrefixedDBKey()
	if _, ok := m.linkIndex[key]; ok {
		return
	}
	m.linkIndex[key] = struct{}{}
	m.links = append(m.links, t)
}

// AddExternalLink records an external URL.
func (m *Metadata) AddExternalLink(url string) {
	if _, ok := m.externalIndex[url]; ok {
		return
	}
	m.externalIndex[url] = struct{}{}
	m.externalLinks = append(m.externalLinks, url)
}

// AddImage records a file usage. A later record for the same file fills in
// details the first one lacked.
func (m *Metadata) AddImage(u FileUsage) {
	if i, ok := m.imageIndex[u.Name]; ok {
		if u.Exists {
			m.images[i] = u
		}
		return
	}
	m.imageIndex[u.Name] = len(m.images)
	m.images = append(m.images, u)
}

// AddTemplate records a transcluded page.
func (m *Metadata) AddTemplate(t Title) {
	t.Fragment = ""
	key := t.PrefixedDBKey()
	if _, ok := m.templateIndex[key]; ok {
		return
	}
	m.templateIndex[key] = struct{}{}
	m.templates = append(m.templates, t)
}

// AddWrapperDivClass asks the host to wrap the HTML in a div with class.
func (m *Metadata) AddWrapperDivClass(class string) {
	for _, c := range m.wrapperClasses {
		if c == class {
			return
		}
	}
	m.wrapperClasses = append(m.wrapperClasses, class)
}

// MergeTracking folds a collaborator's tracking bundle into m.
func (m *Metadata) MergeTracking(t Tracking) {
	for _, u := range t.Images {
		m.AddImage(u)
	}
	for _, tpl := range t.Templates {
		m.AddTemplate(tpl)
	}
	for _, l := range t.Links {
		m.AddLink(l)
	}
	for _, url := range t.ExternalLinks {
		m.AddExternalLink(url)
	}
}

func (m *Metadata) Categories() []Category {
	return append([]Category(nil), m.categories...)
}

// CategorySort returns the sort key for a category and whether it is set.
func (m *Metadata) CategorySort(name string) (string, bool) {
	i, ok := m.categoryIndex[name]
	if !ok {
		return "", false
	}
	return m.categories[i].Sort, true
}

func (m *Metadata) Links() []Title {
	return append([]Title(nil), m.links...)
}

func (m *Metadata) ExternalLinks() []string {
	return append([]string(nil), m.externalLinks...)
}

func (m *Metadata) Images() []FileUsage {
	return append([]FileUsage(nil), m.images...)
}

func (m *Metadata) Templates() []Title {
	return append([]Title(nil), m.templates...)
}

func (m *Metadata) WrapperDivClasses() []string {
	return append([]string(nil), m.wrapperClasses...)
}

// Wrap surrounds html with the requested wrapper div, if any.
func (m *Metadata) Wrap(html string) string {
	if len(m.wrapperClasses) == 0 {
		return html
	}
	return `<div class="` + strings.Join(m.wrapperClasses, " ") + `">` + html + `</div>`
}

var outerParagraph = regexp.MustCompile(`(?s)^<p>(.*?)\n?</p>\n?$`)

// StripOuterParagraph removes a single paragraph wrapping the whole of html.
func StripOuterParagraph(html string) string {
	m := outerParagraph.FindStringSubmatch(html)
	if m == nil || strings.Contains(m[1], "<p>") {
		return html
	}
	return m[1]
}
