package templates

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type fakeStore struct {
	templates []Template
}

func (f *fakeStore) ListActive(_ context.Context, templateContext string) ([]Template, error) {
	out := make([]Template, 0)
	for _, t := range f.templates {
		if t.Context == templateContext && t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) List(context.Context) ([]Template, error)                { return f.templates, nil }
func (f *fakeStore) GetByID(context.Context, uuid.UUID) (*Template, error)   { return nil, nil }
func (f *fakeStore) Create(context.Context, *Template) error                 { return nil }
func (f *fakeStore) Update(context.Context, *Template) error                 { return nil }
func (f *fakeStore) Delete(context.Context, uuid.UUID) error                 { return nil }

func TestPickNoActiveTemplate(t *testing.T) {
	sel := NewSelector(&fakeStore{})

	_, err := sel.Pick(context.Background(), ContextSMSInitial)
	if err != ErrNoActiveTemplate {
		t.Fatalf("expected ErrNoActiveTemplate, got %v", err)
	}
}

func TestPickSkipsInactive(t *testing.T) {
	store := &fakeStore{templates: []Template{
		{ID: uuid.New(), Context: ContextSMSInitial, Name: "off", Weight: 100, Active: false},
		{ID: uuid.New(), Context: ContextSMSInitial, Name: "on", Weight: 1, Active: true},
	}}
	sel := NewSelector(store)

	for i := 0; i < 50; i++ {
		tpl, err := sel.Pick(context.Background(), ContextSMSInitial)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		if tpl.Name != "on" {
			t.Fatalf("picked inactive template %q", tpl.Name)
		}
	}
}

func TestPickWeightedDistribution(t *testing.T) {
	heavy := uuid.New()
	light := uuid.New()
	store := &fakeStore{templates: []Template{
		{ID: heavy, Context: ContextVoiceWindow1, Name: "heavy", Weight: 90, Active: true},
		{ID: light, Context: ContextVoiceWindow1, Name: "light", Weight: 10, Active: true},
	}}
	sel := NewSelector(store)

	const draws = 10000
	counts := map[uuid.UUID]int{}
	for i := 0; i < draws; i++ {
		tpl, err := sel.Pick(context.Background(), ContextVoiceWindow1)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		counts[tpl.ID]++
	}

	ratio := float64(counts[heavy]) / float64(draws)
	if ratio < 0.85 || ratio > 0.95 {
		t.Fatalf("heavy template won %.2f of draws, expected about 0.90", ratio)
	}
	if counts[light] == 0 {
		t.Fatal("light template never won")
	}
}

func TestPickZeroWeightUniform(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	store := &fakeStore{templates: []Template{
		{ID: a, Context: ContextEmailInitial, Name: "a", Weight: 0, Active: true},
		{ID: b, Context: ContextEmailInitial, Name: "b", Weight: 0, Active: true},
	}}
	sel := NewSelector(store)

	counts := map[uuid.UUID]int{}
	for i := 0; i < 2000; i++ {
		tpl, err := sel.Pick(context.Background(), ContextEmailInitial)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		counts[tpl.ID]++
	}

	if counts[a] == 0 || counts[b] == 0 {
		t.Fatalf("zero-weight draw not uniform: %v", counts)
	}
}

func TestRender(t *testing.T) {
	body := "Oi {{full_name}}, sua proposta de {{amount}} no {{bank}} espera: {{signing_link}}"
	vars := map[string]string{
		"full_name":    "Maria Silva",
		"amount":       "R$ 12.345,67",
		"bank":         "Banco Alfa",
		"signing_link": "https://sign.example/abc",
	}

	got := Render(body, vars)
	want := "Oi Maria Silva, sua proposta de R$ 12.345,67 no Banco Alfa espera: https://sign.example/abc"
	if got != want {
		t.Fatalf("render mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestRenderMissingVarEmpty(t *testing.T) {
	got := Render("Hello {{full_name}}{{unknown}}!", map[string]string{"full_name": "Ana"})
	if got != "Hello Ana!" {
		t.Fatalf("expected unknown placeholder to render empty, got %q", got)
	}
}
