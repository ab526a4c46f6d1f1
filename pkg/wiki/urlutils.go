package wiki

import (
	"regexp"
	"strings"
)

// LinkClass is the outcome of classifying a link destination.
type LinkClass int

const (
	// LinkLocal has no recognizable protocol and no host; it names a page.
	LinkLocal LinkClass = iota
	// LinkExternal uses one of the configured URL protocols.
	LinkExternal
	// LinkForeign is not an allowed protocol but still carries a host.
	LinkForeign
)

func (c LinkClass) String() string {
	switch c {
	case LinkExternal:
		return "external"
	case LinkForeign:
		return "foreign"
	default:
		return "local"
	}
}

var (
	schemePrefix  = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.\-]*):`)
	authorityPart = regexp.MustCompile(`^(?:[A-Za-z][A-Za-z0-9+.\-]*:)?//([^/?#]*)`)
	// "host:port" without a scheme is read as an authority, the way PHP's
	// parse_url does.
	bareHostPort = regexp.MustCompile(`^([^:/?#@]+):[0-9]{1,5}(?:[/?#]|$)`)
)

// HasHost reports whether raw carries a network host component.
func HasHost(raw string) bool {
	return Host(raw) != ""
}

// Host returns the host component of raw, or the empty string.
func Host(raw string) string {
	if m := authorityPart.FindStringSubmatch(raw); m != nil {
		return hostOf(m[1])
	}
	if m := bareHostPort.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func hostOf(authority string) string {
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		authority = authority[i+1:]
	}
	if strings.HasPrefix(authority, "[") {
		if i := strings.IndexByte(authority, ']'); i >= 0 {
			return authority[:i+1]
		}
		return authority
	}
	if i := strings.LastIndexByte(authority, ':'); i >= 0 {
		authority = authority[:i]
	}
	return authority
}

// URLParts is the result of a successful Parse.
type URLParts struct {
	Scheme    string // empty for protocol-relative URLs
	Delimiter string // "://" or ":"
	Host      string
	Path      string
}

// URLUtils implements MediaWiki's URL handling against a protocol allow-list.
type URLUtils struct {
	protocols []string
}

// NewURLUtils returns URLUtils for the given protocols, e.g. "https://",
// "mailto:" or "//". The defaults are used when protocols is empty.
func NewURLUtils(protocols []string) *URLUtils {
	if len(protocols) == 0 {
		protocols = DefaultURLProtocols
	}
	lowered := make([]string, 0, len(protocols))
	for _, p := range protocols {
		lowered = append(lowered, strings.ToLower(p))
	}
	return &URLUtils{protocols: lowered}
}

func (u *URLUtils) allows(protocol string) bool {
	for _, p := range u.protocols {
		if p == protocol {
			return true
		}
	}
	return false
}

// Parse splits raw into its parts, returning nil when raw does not start with
// an allowed protocol.
func (u *URLUtils) Parse(raw string) *URLParts {
	relative := strings.HasPrefix(raw, "//")
	if relative {
		raw = "http:" + raw
	}

	m := schemePrefix.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	parts := &URLParts{Scheme: strings.ToLower(m[1])}
	rest := raw[len(m[0]):]

	switch {
	case u.allows(parts.Scheme + "://"):
		parts.Delimiter = "://"
	case u.allows(parts.Scheme + ":"):
		parts.Delimiter = ":"
	default:
		return nil
	}

	if strings.HasPrefix(rest, "//") {
		authority := rest[2:]
		end := strings.IndexAny(authority, "/?#")
		if end < 0 {
			end = len(authority)
		}
		parts.Host = hostOf(authority[:end])
		if parts.Host == "" && parts.Scheme != "file" {
			// parse_url() rejects an empty authority
			return nil
		}
		parts.Path = authority[end:]
	} else if parts.Delimiter == ":" {
		// mailto:, news: and friends keep the address in the host slot
		parts.Host = rest
	} else {
		parts.Path = rest
		if parts.Path != "" && !strings.HasPrefix(parts.Path, "/") {
			parts.Path = "/" + parts.Path
		}
	}

	if relative {
		parts.Scheme = ""
	}
	return parts
}

// Classify decides how a link destination is treated. Host presence wins
// over page title resolution.
func (u *URLUtils) Classify(raw string) LinkClass {
	if u.Parse(raw) != nil {
		return LinkExternal
	}
	if HasHost(raw) {
		return LinkForeign
	}
	return LinkLocal
}

// RemoveDotSegments applies RFC 3986 section 5.2.4 to the whole string, as
// MediaWiki does.
func (u *URLUtils) RemoveDotSegments(raw string) string {
	return RemoveDotSegments(raw)
}

// RemoveDotSegments resolves "." and ".." segments in raw.
func RemoveDotSegments(raw string) string {
	input := raw
	out := ""
	for offset := 0; offset < len(input); {
		rest := input[offset:]
		trim := false
		switch {
		case strings.HasPrefix(rest, "./"):
			offset += 2
		case strings.HasPrefix(rest, "../"):
			offset += 3
		case rest == "/.":
			input = input[:offset+1] + "/"
			offset++
		case strings.HasPrefix(rest, "/./"):
			offset += 2
		case rest == "/..":
			input = input[:offset+2] + "/"
			offset += 2
			trim = true
		case strings.HasPrefix(rest, "/../"):
			offset += 3
			trim = true
		case rest == ".":
			offset++
		case rest == "..":
			offset += 2
		default:
			end := len(input)
			if i := strings.IndexByte(input[offset+1:], '/'); i >= 0 {
				end = offset + 1 + i
			}
			out += input[offset:end]
			offset = end
		}
		if trim {
			if i := strings.LastIndexByte(out, '/'); i >= 0 {
				out = out[:i]
			} else {
				out = ""
			}
		}
	}
	return out
}
