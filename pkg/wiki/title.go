package wiki

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Namespace numbers, as used by MediaWiki.
const (
	NSMedia         = -2
	NSSpecial       = -1
	NSMain          = 0
	NSTalk          = 1
	NSUser          = 2
	NSUserTalk      = 3
	NSProject       = 4
	NSProjectTalk   = 5
	NSFile          = 6
	NSFileTalk      = 7
	NSMediaWiki     = 8
	NSMediaWikiTalk = 9
	NSTemplate      = 10
	NSTemplateTalk  = 11
	NSHelp          = 12
	NSHelpTalk      = 13
	NSCategory      = 14
	NSCategoryTalk  = 15
)

const maxTitleBytes = 255

var namespaceNames = map[int]string{
	NSMedia:         "Media",
	NSSpecial:       "Special",
	NSTalk:          "Talk",
	NSUser:          "User",
	NSUserTalk:      "User talk",
	NSProject:       "Project",
	NSProjectTalk:   "Project talk",
	NSFile:          "File",
	NSFileTalk:      "File talk",
	NSMediaWiki:     "MediaWiki",
	NSMediaWikiTalk: "MediaWiki talk",
	NSTemplate:      "Template",
	NSTemplateTalk:  "Template talk",
	NSHelp:          "Help",
	NSHelpTalk:      "Help talk",
	NSCategory:      "Category",
	NSCategoryTalk:  "Category talk",
}

// namespaceByName is keyed by the lower cased name with spaces.
var namespaceByName = func() map[string]int {
	m := map[string]int{"image": NSFile, "image talk": NSFileTalk}
	for ns, name := range namespaceNames {
		m[strings.ToLower(name)] = ns
	}
	return m
}()

// NamespaceName returns the canonical name of ns, empty for the main namespace.
func NamespaceName(ns int) string {
	return namespaceNames[ns]
}

// Title is a normalized reference to a wiki page.
type Title struct {
	Namespace int
	DBKey     string // underscores, first letter upper cased
	Fragment  string
}

// Text returns the title without namespace, with spaces.
func (t Title) Text() string {
	return strings.ReplaceAll(t.DBKey, "_", " ")
}

// PrefixedDBKey returns the namespace-qualified key, e.g. "Help_talk:Foo_bar".
func (t Title) PrefixedDBKey() string {
	if name := namespaceNames[t.Namespace]; name != "" {
		return strings.ReplaceAll(name, " ", "_") + ":" + t.DBKey
	}
	return t.DBKey
}

// PrefixedText returns the namespace-qualified title with spaces.
func (t Title) PrefixedText() string {
	return strings.ReplaceAll(t.PrefixedDBKey(), "_", " ")
}

// FullText is PrefixedText plus the fragment, if any.
func (t Title) FullText() string {
	if t.Fragment != "" {
		return t.PrefixedText() + "#" + t.Fragment
	}
	return t.PrefixedText()
}

func (t Title) String() string {
	return t.FullText()
}

var (
	titleWhitespace = regexp.MustCompile(`[ _\x{A0}\x{1680}\x{180E}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}]+`)
	percentEscape   = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
	htmlEntity      = regexp.MustCompile(`&[A-Za-z0-9\x{80}-\x{10FFFF}]+;`)
)

// TitleParser turns user supplied text into titles following MediaWiki's
// title validity rules.
type TitleParser struct {
	illegal *regexp.Regexp
}

// NewTitleParser builds a parser for the given legal title character class.
func NewTitleParser(legalTitleChars string) (*TitleParser, error) {
	illegal, err := regexp.Compile(`[^` + legalTitleChars + `]`)
	if err != nil {
		return nil, errors.Wrap(err, "compile legal title chars")
	}
	return &TitleParser{illegal: illegal}, nil
}

// NewFromText returns the title named by text, or nil when text is not a
// valid title. The error is reserved for lookup failures and is always nil
// here.
func (p *TitleParser) NewFromText(text string) (*Title, error) {
	return p.parse(text), nil
}

func (p *TitleParser) parse(text string) *Title {
	if !utf8.ValidString(text) {
		return nil
	}
	text = titleWhitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	t := &Title{}
	if strings.HasPrefix(text, ":") {
		text = strings.TrimSpace(text[1:])
	}

	if i := strings.IndexByte(text, '#'); i >= 0 {
		t.Fragment = strings.TrimSpace(text[i+1:])
		text = strings.TrimSpace(text[:i])
	}

	if prefix, rest, ok := strings.Cut(text, ":"); ok {
		if ns, known := namespaceByName[strings.ToLower(strings.TrimSpace(prefix))]; known {
			t.Namespace = ns
			text = strings.TrimSpace(rest)
			if strings.HasPrefix(text, ":") {
				return nil
			}
		}
	}

	if text == "" || !p.validText(text) {
		return nil
	}
	if t.Namespace != NSSpecial && len(text) > maxTitleBytes {
		return nil
	}

	t.DBKey = strings.ReplaceAll(ucfirst(text), " ", "_")
	return t
}

func (p *TitleParser) validText(text string) bool {
	if p.illegal.MatchString(text) || percentEscape.MatchString(text) || htmlEntity.MatchString(text) {
		return false
	}
	if strings.Contains(text, "~~~") {
		return false
	}
	if text == "." || text == ".." ||
		strings.HasPrefix(text, "./") || strings.HasPrefix(text, "../") ||
		strings.Contains(text, "/./") || strings.Contains(text, "/../") ||
		strings.HasSuffix(text, "/.") || strings.HasSuffix(text, "/..") {
		return false
	}
	return true
}

func ucfirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
