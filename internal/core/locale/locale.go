// Package locale serves user-facing texts and button labels from the embedded
// per-language catalogs, falling back to the default language and then to the key
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

//go:embed langs/*.json
var embedded embed.FS

// Button is one labelled button of a page, in catalog order
type Button struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type page struct {
	Text    map[string]string `json:"text"`
	Buttons []Button          `json:"buttons"`
}

type file struct {
	Name  string          `json:"name"`
	Pages map[string]page `json:"pages"`
}

// Lang describes one available language
type Lang struct {
	Code string
	Name string
}

// Catalog is immutable after Load and safe for concurrent use
type Catalog struct {
	def     string
	files   map[string]file
	codes   []string
	matcher language.Matcher
}

// Default loads the embedded catalogs
func Default(def string) (*Catalog, error) {
	sub, err := fs.Sub(embedded, "langs")
	if err != nil {
		return nil, err
	}
	return Load(sub, def)
}

// Load reads every <code>.json in fsys. def must be one of them.
func Load(fsys fs.FS, def string) (*Catalog, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	c := &Catalog{def: def, files: make(map[string]file, len(names))}
	for _, n := range names {
		raw, err := fs.ReadFile(fsys, n)
		if err != nil {
			return nil, err
		}
		var f file
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("locale: %s: %w", n, err)
		}
		code := strings.TrimSuffix(path.Base(n), ".json")
		c.files[code] = f
		c.codes = append(c.codes, code)
	}
	if _, ok := c.files[def]; !ok {
		return nil, fmt.Errorf("locale: default language %q has no catalog", def)
	}
	// the default goes first so the matcher falls back to it
	slices.Sort(c.codes)
	c.codes = slices.DeleteFunc(c.codes, func(s string) bool { return s == def })
	c.codes = append([]string{def}, c.codes...)

	tags := make([]language.Tag, 0, len(c.codes))
	for _, code := range c.codes {
		tags = append(tags, language.Make(code))
	}
	c.matcher = language.NewMatcher(tags)
	return c, nil
}

// DefaultLang returns the fallback language code
func (c *Catalog) DefaultLang() string { return c.def }

// Has reports whether code has its own catalog
func (c *Catalog) Has(code string) bool {
	_, ok := c.files[code]
	return ok
}

// Langs lists the available languages, default first
func (c *Catalog) Langs() []Lang {
	out := make([]Lang, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, Lang{Code: code, Name: c.files[code].Name})
	}
	return out
}

// Match maps a client language code (e.g. "pt-BR", "ru-RU") to the closest
// available catalog, or the default when nothing is close
func (c *Catalog) Match(code string) string {
	if c.Has(code) {
		return code
	}
	tag, err := language.Parse(code)
	if err != nil {
		return c.def
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return c.def
	}
	return c.codes[idx]
}

// Text returns page.field for lang, then for the default language, then "PAGE.FIELD"
func (c *Catalog) Text(pageKey, field, lang string) string {
	for _, code := range []string{lang, c.def} {
		if s, ok := c.files[code].Pages[pageKey].Text[field]; ok {
			return s
		}
	}
	return pageKey + "." + field
}

// Format is Text followed by fmt.Sprintf
func (c *Catalog) Format(pageKey, field, lang string, args ...any) string {
	return fmt.Sprintf(c.Text(pageKey, field, lang), args...)
}

// Buttons returns the labelled buttons of page in catalog order. Keys missing
// from lang are filled from the default language.
func (c *Catalog) Buttons(pageKey, lang string) []Button {
	base := c.files[c.def].Pages[pageKey].Buttons
	own := c.files[lang].Pages[pageKey].Buttons
	if len(base) == 0 {
		return slices.Clone(own)
	}
	out := make([]Button, 0, len(base))
	for _, b := range base {
		if i := slices.IndexFunc(own, func(o Button) bool { return o.Key == b.Key }); i >= 0 {
			b.Text = own[i].Text
		}
		out = append(out, b)
	}
	return out
}

// Button returns the label of one button, falling back like Buttons, then to key
func (c *Catalog) Button(pageKey, key, lang string) string {
	for _, b := range c.Buttons(pageKey, lang) {
		if b.Key == key {
			return b.Text
		}
	}
	return key
}

// KeyOf finds the button key whose label is text in any language. Reply
// keyboards send the label back as plain text, in whatever language the
// keyboard was drawn.
func (c *Catalog) KeyOf(pageKey, text string) (string, bool) {
	for _, code := range c.codes {
		for _, b := range c.files[code].Pages[pageKey].Buttons {
			if b.Text == text {
				return b.Key, true
			}
		}
	}
	return "", false
}
