package wiki

// DefaultLegalTitleChars is MediaWiki's $wgLegalTitleChars written as a Go
// regexp character class body. The byte range \x80-\xFF of the PCRE class
// becomes every non-ASCII rune.
const DefaultLegalTitleChars = ` %!"$&'()*,\-./0-9:;=?@A-Z\\^_` + "`" + `a-z~\x{80}-\x{10FFFF}+`

// DefaultURLProtocols is MediaWiki's default $wgUrlProtocols.
var DefaultURLProtocols = []string{
	"bitcoin:", "ftp://", "ftps://", "geo:", "git://", "gopher://", "http://",
	"https://", "irc://", "ircs://", "magnet:", "mailto:", "matrix:", "mms://",
	"news:", "nntp://", "redis://", "sftp://", "sip:", "sips:", "sms:",
	"ssh://", "svn://", "tel:", "telnet://", "urn:", "worldwind://", "xmpp:",
	"//",
}

// Config carries the wiki settings the reference collaborators need.
type Config struct {
	LegalTitleChars string   `yaml:"legal_title_chars"`
	URLProtocols    []string `yaml:"url_protocols"`
	// ArticlePath is the pretty URL pattern, "$1" is the encoded title.
	ArticlePath string `yaml:"article_path"`
	Script      string `yaml:"script"`
	UploadPath  string `yaml:"upload_path"`
}

// DefaultConfig returns MediaWiki's defaults.
func DefaultConfig() Config {
	return Config{
		LegalTitleChars: DefaultLegalTitleChars,
		URLProtocols:    append([]string(nil), DefaultURLProtocols...),
		ArticlePath:     "/wiki/$1",
		Script:          "/index.php",
		UploadPath:      "/images",
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.LegalTitleChars == "" {
		c.LegalTitleChars = d.LegalTitleChars
	}
	if len(c.URLProtocols) == 0 {
		c.URLProtocols = d.URLProtocols
	}
	if c.ArticlePath == "" {
		c.ArticlePath = d.ArticlePath
	}
	if c.Script == "" {
		c.Script = d.Script
	}
	if c.UploadPath == "" {
		c.UploadPath = d.UploadPath
	}
	return c
}
