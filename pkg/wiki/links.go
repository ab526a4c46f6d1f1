package wiki

import (
	"html"
	"net/url"
	"sort"
	"strings"
)

// PageLookup answers whether a page exists.
type PageLookup interface {
	PageExists(t Title) (bool, error)
}

// LinkRenderer produces wiki link markup with red links for missing pages.
type LinkRenderer struct {
	config Config
	pages  PageLookup
}

// NewLinkRenderer returns a LinkRenderer resolving existence through pages.
func NewLinkRenderer(config Config, pages PageLookup) *LinkRenderer {
	return &LinkRenderer{config: config.WithDefaults(), pages: pages}
}

// MakeLink renders an anchor to t. labelHTML is used as is; an empty label
// falls back to the escaped title text. attrs override the generated ones.
func (r *LinkRenderer) MakeLink(t Title, labelHTML string, attrs map[string]string) (string, error) {
	exists := t.Namespace == NSSpecial
	if !exists {
		var err error
		if exists, err = r.pages.PageExists(t); err != nil {
			return "", err
		}
	}

	if labelHTML == "" {
		labelHTML = html.EscapeString(t.FullText())
	}

	var href, class, tooltip string
	if exists {
		href = r.ArticleURL(t)
		tooltip = t.PrefixedText()
	} else {
		href = r.EditURL(t) + "&redlink=1"
		class = "new"
		tooltip = t.PrefixedText() + " (page does not exist)"
	}
	if v, ok := attrs["class"]; ok {
		class = strings.TrimSpace(class + " " + v)
	}
	if v, ok := attrs["title"]; ok {
		tooltip = v
	}

	var b strings.Builder
	b.WriteString(`<a href="`)
	b.WriteString(html.EscapeString(href))
	b.WriteByte('"')
	writeAttr(&b, "class", class)
	writeAttr(&b, "title", tooltip)

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k != "class" && k != "title" && k != "href" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeAttr(&b, k, attrs[k])
	}
	b.WriteByte('>')
	b.WriteString(labelHTML)
	b.WriteString("</a>")
	return b.String(), nil
}

// ArticleURL returns the local URL for viewing t.
func (r *LinkRenderer) ArticleURL(t Title) string {
	u := strings.ReplaceAll(r.config.ArticlePath, "$1", urlencode(t.PrefixedDBKey()))
	if t.Fragment != "" {
		u += "#" + urlencode(strings.ReplaceAll(t.Fragment, " ", "_"))
	}
	return u
}

// EditURL returns the local URL of the edit form for t.
func (r *LinkRenderer) EditURL(t Title) string {
	return r.config.Script + "?title=" + urlencode(t.PrefixedDBKey()) + "&action=edit"
}

func writeAttr(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(value))
	b.WriteByte('"')
}

var urlencodeUnescaper = strings.NewReplacer(
	"%3B", ";", "%40", "@", "%24", "$", "%21", "!", "%2A", "*",
	"%28", "(", "%29", ")", "%2C", ",", "%2F", "/", "%7E", "~", "%3A", ":",
)

// urlencode mirrors wfUrlencode: rawurlencode with a few characters left
// readable.
func urlencode(s string) string {
	return urlencodeUnescaper.Replace(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"))
}
