package access

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestEvaluateDomain(t *testing.T) {
	acme := Restrictions{AllowedDomains: []string{"acme.com"}}
	tests := []struct {
		name  string
		email string
		r     Restrictions
		want  Decision
	}{
		{"no restrictions", "anyone@anywhere.org", Restrictions{}, Allowed},
		{"exact match", "user@acme.com", acme, Allowed},
		{"case insensitive", "user@ACME.COM", acme, Allowed},
		{"other domain", "user@other.com", acme, Denied},
		{"subdomain is not a match", "user@mail.acme.com", acme, Denied},
		{"last at sign wins", "\"odd@other.com\"@acme.com", acme, Allowed},
		{"no at sign", "acme.com", acme, Denied},
		{"empty domain", "user@", acme, Denied},
		{"configured with upper case", "user@acme.com", Restrictions{AllowedDomains: []string{"ACME.com"}}, Allowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EvaluateDomain(tc.email, tc.r); got != tc.want {
				t.Fatalf("EvaluateDomain(%q) = %v, want %v", tc.email, got, tc.want)
			}
		})
	}
}

func TestRestrictionsNormalize(t *testing.T) {
	r := Restrictions{
		AllowedDomains:    []string{" Acme.com", "@acme.com", "", "example.org"},
		AllowedGitHubOrgs: []string{"Avicted", "avicted "},
	}
	got := r.Normalize()
	if !reflect.DeepEqual(got.AllowedDomains, []string{"acme.com", "example.org"}) {
		t.Fatalf("AllowedDomains = %v", got.AllowedDomains)
	}
	if !reflect.DeepEqual(got.AllowedGitHubOrgs, []string{"avicted"}) {
		t.Fatalf("AllowedGitHubOrgs = %v", got.AllowedGitHubOrgs)
	}
	empty := Restrictions{}.Normalize()
	if empty.AllowedDomains == nil || len(empty.AllowedDomains) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", empty.AllowedDomains)
	}
}

func TestRestrictionsValidate(t *testing.T) {
	bad := []string{"localhost", "a b.com", "x@y.com", ".acme.com", "acme.com.", "acme.com/path"}
	for _, d := range bad {
		if err := (Restrictions{AllowedDomains: []string{d}}).Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidInput", d, err)
		}
	}
	if err := (Restrictions{AllowedDomains: []string{"acme.com"}, AllowedGitHubOrgs: []string{"acme-org"}}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

type fakeRepo struct {
	stored *Restrictions
	err    error
}

func (r *fakeRepo) GetRestrictions(_ context.Context) (Restrictions, error) {
	if r.err != nil {
		return Restrictions{}, r.err
	}
	if r.stored == nil {
		return Restrictions{}, ErrNotFound
	}
	return *r.stored, nil
}

func (r *fakeRepo) SaveRestrictions(_ context.Context, rs Restrictions) error {
	if r.err != nil {
		return r.err
	}
	r.stored = &rs
	return nil
}

func TestSettings_DefaultsUntilSaved(t *testing.T) {
	repo := &fakeRepo{}
	settings := NewSettings(repo, Restrictions{AllowedDomains: []string{"Default.com"}})

	got, err := settings.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(got.AllowedDomains, []string{"default.com"}) {
		t.Fatalf("AllowedDomains = %v", got.AllowedDomains)
	}

	saved, err := settings.Update(context.Background(), Restrictions{AllowedDomains: []string{"ACME.com"}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !reflect.DeepEqual(saved.AllowedDomains, []string{"acme.com"}) {
		t.Fatalf("saved = %v", saved.AllowedDomains)
	}
	got, _ = settings.Get(context.Background())
	if !reflect.DeepEqual(got.AllowedDomains, []string{"acme.com"}) {
		t.Fatalf("AllowedDomains after update = %v", got.AllowedDomains)
	}
}

func TestSettings_UpdateRejectsInvalid(t *testing.T) {
	repo := &fakeRepo{}
	settings := NewSettings(repo, Restrictions{})
	if _, err := settings.Update(context.Background(), Restrictions{AllowedDomains: []string{"nodot"}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if repo.stored != nil {
		t.Fatal("invalid restrictions should not be stored")
	}
}

func TestSettings_CheckEmail(t *testing.T) {
	repo := &fakeRepo{}
	settings := NewSettings(repo, Restrictions{AllowedDomains: []string{"acme.com"}})
	if err := settings.CheckEmail(context.Background(), "user@ACME.COM"); err != nil {
		t.Fatalf("CheckEmail() error = %v", err)
	}
	if err := settings.CheckEmail(context.Background(), "user@other.com"); !errors.Is(err, ErrDomainDenied) {
		t.Fatalf("expected ErrDomainDenied, got %v", err)
	}
	repo.err = errors.New("db down")
	if err := settings.CheckEmail(context.Background(), "user@acme.com"); err == nil || errors.Is(err, ErrDomainDenied) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSettings_NilRepo(t *testing.T) {
	settings := &Settings{}
	if _, err := settings.Get(context.Background()); err == nil {
		t.Fatal("expected error for nil repo")
	}
}
