package wiki

import (
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// File describes an uploaded file.
type File struct {
	Name        string // db key, e.g. "Example.jpg"
	Width       int
	Height      int
	SHA1        string
	Description string
	Timestamp   time.Time
}

// FileLookup finds uploaded files. A missing file is nil with a nil error.
type FileLookup interface {
	FindFile(t Title) (*File, error)
}

// FileRequest asks for an embedded file to be rendered on behalf of Page.
type FileRequest struct {
	Name  string
	Page  string
	RevID int64
}

// FileRendering is rendered file markup plus what the rendering touched.
type FileRendering struct {
	HTML     string
	Tracking Tracking
}

// FileRenderer renders [[File:name]] embeds from a FileLookup.
type FileRenderer struct {
	config Config
	titles *TitleParser
	files  FileLookup
	links  *LinkRenderer
	strict *bluemonday.Policy
}

// NewFileRenderer returns a FileRenderer. links renders the description page
// URL.
func NewFileRenderer(config Config, titles *TitleParser, files FileLookup, links *LinkRenderer) *FileRenderer {
	return &FileRenderer{
		config: config.WithDefaults(),
		titles: titles,
		files:  files,
		links:  links,
		strict: bluemonday.StrictPolicy(),
	}
}

// ResolveFile renders the file named by req. Missing files produce a broken
// media placeholder linking to the upload form; names that are not valid
// titles come back as literal text.
func (r *FileRenderer) ResolveFile(req FileRequest) (FileRendering, error) {
	t, _ := r.titles.NewFromText("File:" + req.Name)
	if t == nil || t.Namespace != NSFile {
		return FileRendering{HTML: html.EscapeString("[[File:" + req.Name + "]]")}, nil
	}
	t.Fragment = ""

	f, err := r.files.FindFile(*t)
	if err != nil {
		return FileRendering{}, err
	}
	if f == nil {
		return FileRendering{
			HTML:     r.brokenFile(*t),
			Tracking: Tracking{Images: []FileUsage{{Name: t.DBKey}}},
		}, nil
	}

	usage := FileUsage{Name: t.DBKey, Exists: true, SHA1: f.SHA1}
	if !f.Timestamp.IsZero() {
		usage.Timestamp = f.Timestamp.UTC().Format("20060102150405")
	}
	return FileRendering{
		HTML:     r.file(*t, f),
		Tracking: Tracking{Images: []FileUsage{usage}},
	}, nil
}

func (r *FileRenderer) file(t Title, f *File) string {
	var b strings.Builder
	b.WriteString(`<span class="mw-default-size" typeof="mw:File"><a href="`)
	b.WriteString(html.EscapeString(r.links.ArticleURL(t)))
	b.WriteString(`" class="mw-file-description"><img`)
	if alt := strings.TrimSpace(r.strict.Sanitize(f.Description)); alt != "" {
		b.WriteString(` alt="`)
		b.WriteString(alt)
		b.WriteByte('"')
	}
	b.WriteString(` src="`)
	b.WriteString(html.EscapeString(strings.TrimSuffix(r.config.UploadPath, "/") + "/" + urlencode(t.DBKey)))
	b.WriteString(`" decoding="async"`)
	if f.Width > 0 && f.Height > 0 {
		b.WriteString(` width="` + strconv.Itoa(f.Width) + `" height="` + strconv.Itoa(f.Height) + `"`)
	}
	b.WriteString(` class="mw-file-element" /></a></span>`)
	return b.String()
}

func (r *FileRenderer) brokenFile(t Title) string {
	upload := r.config.Script + "?title=Special:Upload&wpDestFile=" + urlencode(t.DBKey)
	return `<span class="mw-default-size" typeof="mw:Error mw:File"><a href="` + html.EscapeString(upload) +
		`" class="new" title="` + html.EscapeString(t.PrefixedText()) +
		`"><span class="mw-file-element mw-broken-media">` + html.EscapeString(t.PrefixedText()) +
		`</span></a></span>`
}
