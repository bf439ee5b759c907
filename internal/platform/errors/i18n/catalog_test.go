package i18n

import "testing"

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	for _, locale := range []string{"", "missing-locale", "fr-FR", "en-GB"} {
		if got := GetCatalog(locale); got != base {
			t.Fatalf("GetCatalog(%q) = %v, want en-US catalog", locale, got.Locale())
		}
	}
}

func TestGetCatalogMatchesRegionToRegisteredLanguage(t *testing.T) {
	portuguese := NewCatalog("pt-BR", map[Code]string{CodeVotingInactive: "A votação não está aberta"})
	RegisterCatalog("pt-BR", portuguese)

	if got := GetCatalog("pt-BR"); got != portuguese {
		t.Fatalf("exact match = %q, want pt-BR", got.Locale())
	}
	if got := GetCatalog("pt"); got != portuguese {
		t.Fatalf("language match = %q, want pt-BR", got.Locale())
	}
}

func TestFormatFallbacks(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "hello {{.Name}}",
	})

	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if cat.Format("code", nil) != "hello <no value>" {
		t.Fatal("expected template to render missing metadata")
	}
	if got := cat.Format("code", map[string]string{"Name": "Ada"}); got != "hello Ada" {
		t.Fatalf("format = %q, want hello Ada", got)
	}
}

func TestFormatTemplateErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "{{ if .Name }}",
	})
	if cat.Format("code", map[string]string{"Name": "X"}) != "{{ if .Name }}" {
		t.Fatal("expected template fallback on parse error")
	}
}

func TestBaseCatalogRendersVotingMessages(t *testing.T) {
	got := GetCatalog("en-US").Format(CodeOptionUnknown, map[string]string{"ScenarioID": "harbor"})
	if got != "harbor is not one of the current options" {
		t.Fatalf("format = %q", got)
	}
}
