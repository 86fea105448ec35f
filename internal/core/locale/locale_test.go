package locale

import (
	"testing"
	"testing/fstest"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	fsys := fstest.MapFS{
		"en.json": {Data: []byte(`{"name":"English","pages":{
			"MAIN":{"text":{"WELCOME":"Hi %s","HELP":"Help"},
			        "buttons":[{"key":"dictionary","text":"Dictionary"},{"key":"quiz","text":"Quiz"}]}}}`)},
		"ru.json": {Data: []byte(`{"name":"Русский","pages":{
			"MAIN":{"text":{"WELCOME":"Привет %s"},
			        "buttons":[{"key":"quiz","text":"Тест"}]}}}`)},
		"de.json": {Data: []byte(`{"name":"Deutsch","pages":{}}`)},
	}
	c, err := Load(fsys, "en")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestText_Fallbacks(t *testing.T) {
	c := testCatalog(t)
	tests := []struct {
		page, field, lang, want string
	}{
		{"MAIN", "WELCOME", "ru", "Привет %s"},
		{"MAIN", "HELP", "ru", "Help"},
		{"MAIN", "HELP", "xx", "Help"},
		{"MAIN", "MISSING", "ru", "MAIN.MISSING"},
		{"NOPE", "X", "en", "NOPE.X"},
	}
	for _, tt := range tests {
		if got := c.Text(tt.page, tt.field, tt.lang); got != tt.want {
			t.Fatalf("Text(%s,%s,%s) = %q want %q", tt.page, tt.field, tt.lang, got, tt.want)
		}
	}
	if got := c.Format("MAIN", "WELCOME", "en", "Ann"); got != "Hi Ann" {
		t.Fatalf("Format = %q", got)
	}
}

func TestButtons_MergeInDefaultOrder(t *testing.T) {
	c := testCatalog(t)
	got := c.Buttons("MAIN", "ru")
	if len(got) != 2 || got[0] != (Button{"dictionary", "Dictionary"}) || got[1] != (Button{"quiz", "Тест"}) {
		t.Fatalf("Buttons = %+v", got)
	}
	if c.Button("MAIN", "quiz", "ru") != "Тест" || c.Button("MAIN", "nope", "ru") != "nope" {
		t.Fatalf("Button lookup broken")
	}
	if k, ok := c.KeyOf("MAIN", "Тест"); !ok || k != "quiz" {
		t.Fatalf("KeyOf = %q %v", k, ok)
	}
	if _, ok := c.KeyOf("MAIN", "nothing"); ok {
		t.Fatalf("KeyOf matched unknown label")
	}
}

func TestMatchAndLangs(t *testing.T) {
	c := testCatalog(t)
	tests := map[string]string{
		"ru":    "ru",
		"ru-RU": "ru",
		"de-AT": "de",
		"ja":    "en",
		"":      "en",
		"%%":    "en",
	}
	for in, want := range tests {
		if got := c.Match(in); got != want {
			t.Fatalf("Match(%q) = %q want %q", in, got, want)
		}
	}
	langs := c.Langs()
	if len(langs) != 3 || langs[0].Code != "en" || langs[1].Code != "de" || langs[2].Name != "Русский" {
		t.Fatalf("Langs = %+v", langs)
	}
}

func TestLoad_MissingDefault(t *testing.T) {
	if _, err := Load(fstest.MapFS{"ru.json": {Data: []byte(`{}`)}}, "en"); err == nil {
		t.Fatalf("want error for missing default")
	}
	if _, err := Load(fstest.MapFS{"en.json": {Data: []byte(`{`)}}, "en"); err == nil {
		t.Fatalf("want error for broken json")
	}
}

func TestDefault_EmbeddedCatalogs(t *testing.T) {
	c, err := Default("en")
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if !c.Has("ru") || c.DefaultLang() != "en" {
		t.Fatalf("langs = %+v", c.Langs())
	}
	for _, lang := range []string{"en", "ru"} {
		if got := len(c.Buttons("MAIN", lang)); got != 6 {
			t.Fatalf("%s MAIN buttons = %d", lang, got)
		}
		if got := c.Text("MAIN", "MENU", lang); got == "MAIN.MENU" {
			t.Fatalf("%s MAIN.MENU missing", lang)
		}
	}
	// every English text has a Russian counterpart
	for name, p := range c.files["en"].Pages {
		for field := range p.Text {
			if _, ok := c.files["ru"].Pages[name].Text[field]; !ok {
				t.Fatalf("ru is missing %s.%s", name, field)
			}
		}
	}
	if k, ok := c.KeyOf("COMMON", "✖️ Отмена"); !ok || k != "cancel" {
		t.Fatalf("KeyOf cancel = %q %v", k, ok)
	}
}
