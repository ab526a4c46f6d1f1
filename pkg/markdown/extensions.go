package markdown

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
)

// Optional extensions by name. None are enabled by default, so plain
// CommonMark plus the wiki additions is what a page gets.
var extensionRegistry = map[string]func() goldmark.Extender{
	"gfm":           func() goldmark.Extender { return extension.GFM },
	"table":         func() goldmark.Extender { return extension.Table },
	"strikethrough": func() goldmark.Extender { return extension.Strikethrough },
	"linkify":       func() goldmark.Extender { return extension.Linkify },
	"tasklist":      func() goldmark.Extender { return extension.TaskList },
	"definition":    func() goldmark.Extender { return extension.DefinitionList },
	"footnote":      func() goldmark.Extender { return extension.Footnote },
	"emoji":         func() goldmark.Extender { return emoji.Emoji },
	"wikilink":      WikiLinkExtension,
}

// ExtensionNames lists the names accepted in Config.Extensions, sorted.
func ExtensionNames() []string {
	names := make([]string, 0, len(extensionRegistry))
	for name := range extensionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectExtensions(names []string) ([]goldmark.Extender, error) {
	var extenders []goldmark.Extender
	seen := map[string]struct{}{}

	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		ext, ok := extensionRegistry[key]
		if !ok {
			return nil, errors.Errorf("unknown markdown extension %q (known: %s)", name, strings.Join(ExtensionNames(), ", "))
		}
		extenders = append(extenders, ext())
		seen[key] = struct{}{}
	}
	return extenders, nil
}
