package canon

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTemplate is matched by every *TemplateError.
var ErrMalformedTemplate = errors.New("malformed template")

// TemplateError describes a placeholder that could not be parsed.
type TemplateError struct {
	Template string
	Offset   int
	Reason   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("malformed template %q at offset %d: %s", e.Template, e.Offset, e.Reason)
}

// Is reports ErrMalformedTemplate so callers can use errors.Is.
func (e *TemplateError) Is(target error) bool {
	return target == ErrMalformedTemplate
}

// Template is a pattern as written by a patch author.
type Template interface {
	isTemplate()
}

// Literal is a plain-text template.
type Literal string

// Regex is a regular-expression template with JavaScript-style flags.
type Regex struct {
	Source string
	Flags  string
}

func (Literal) isTemplate()  {}
func (Regex) isTemplate()    {}
func (*Pattern) isTemplate() {}

func (r Regex) String() string {
	return "/" + r.Source + "/" + r.Flags
}

// RawModifier marks an intl placeholder whose key is already hashed.
const RawModifier = "raw"

const (
	placeholderOpen = "#{"
	intlName        = "intl"
	identName       = "ident"
	separator       = "::"
)

type tokenKind uint8

const (
	tokenText tokenKind = iota
	tokenIntl
	tokenIdent
)

type token struct {
	kind     tokenKind
	text     string // tokenText only
	key      string
	modifier string
}

// scan splits src into text runs and placeholders. In regex mode backslash
// escapes are copied through untouched and `\i` becomes an identifier token.
func scan(src string, regexMode bool) ([]token, error) {
	var (
		tokens []token
		text   strings.Builder
	)
	flush := func() {
		if text.Len() > 0 {
			tokens = append(tokens, token{kind: tokenText, text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(src); {
		c := src[i]

		if regexMode && c == '\\' {
			if i+1 >= len(src) {
				text.WriteByte(c)
				i++
				continue
			}
			if src[i+1] == 'i' {
				flush()
				tokens = append(tokens, token{kind: tokenIdent})
			} else {
				text.WriteString(src[i : i+2])
			}
			i += 2
			continue
		}

		if c == '#' && strings.HasPrefix(src[i:], placeholderOpen) {
			tok, n, err := parsePlaceholder(src, i)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				// Not a placeholder, keep the brace as text.
				text.WriteString(placeholderOpen)
				i += len(placeholderOpen)
				continue
			}
			flush()
			tokens = append(tokens, tok)
			i += n
			continue
		}

		text.WriteByte(c)
		i++
	}
	flush()
	return tokens, nil
}

// parsePlaceholder parses the placeholder starting at src[start]. It returns
// n == 0 when the text is not placeholder syntax at all.
func parsePlaceholder(src string, start int) (token, int, error) {
	i := start + len(placeholderOpen)
	nameStart := i
	for i < len(src) && isLower(src[i]) {
		i++
	}
	name := src[nameStart:i]
	if name == "" {
		return token{}, 0, nil
	}

	rest := src[i:]
	opensArgs := strings.HasPrefix(rest, separator)
	closes := strings.HasPrefix(rest, "}")
	if !opensArgs && !closes {
		if name == intlName || name == identName {
			return token{}, 0, malformed(src, start, "unterminated placeholder #{"+name)
		}
		return token{}, 0, nil
	}

	switch name {
	case identName:
		if !closes {
			return token{}, 0, malformed(src, start, "#{ident} takes no arguments")
		}
		return token{kind: tokenIdent}, i + 1 - start, nil

	case intlName:
		if !opensArgs {
			return token{}, 0, malformed(src, start, "#{intl} requires a key")
		}
		i += len(separator)
		keyStart := i
		for i < len(src) && isKeyChar(src[i]) {
			i++
		}
		key := src[keyStart:i]
		if key == "" {
			return token{}, 0, malformed(src, start, "empty localization key")
		}

		var modifier string
		if strings.HasPrefix(src[i:], separator) {
			i += len(separator)
			modStart := i
			for i < len(src) && isWordChar(src[i]) {
				i++
			}
			modifier = src[modStart:i]
			if modifier != RawModifier {
				return token{}, 0, malformed(src, start, fmt.Sprintf("unknown modifier %q", modifier))
			}
		}

		if i >= len(src) || src[i] != '}' {
			return token{}, 0, malformed(src, start, "unterminated placeholder #{intl::"+key)
		}
		return token{kind: tokenIntl, key: key, modifier: modifier}, i + 1 - start, nil

	default:
		return token{}, 0, malformed(src, start, fmt.Sprintf("unrecognized placeholder #{%s}", name))
	}
}

func malformed(src string, offset int, reason string) error {
	return &TemplateError{Template: src, Offset: offset, Reason: reason}
}

func isLower(c byte) bool {
	return c >= 'a' && c <= 'z'
}

func isWordChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// isKeyChar accepts word characters plus the characters that appear in
// hashed tokens passed with the raw modifier.
func isKeyChar(c byte) bool {
	return isWordChar(c) || c == '$' || c == '+' || c == '/'
}

// HasPlaceholders reports whether s contains any placeholder. Malformed
// placeholders count as present.
func HasPlaceholders(s string) bool {
	tokens, err := scan(s, false)
	if err != nil {
		return true
	}
	for _, tok := range tokens {
		if tok.kind != tokenText {
			return true
		}
	}
	return false
}
