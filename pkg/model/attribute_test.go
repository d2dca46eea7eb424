package model

import "testing"

func TestNewAttributeRejectsSlashes(t *testing.T) {
	if _, err := NewAttribute("person/extra", "name"); err == nil {
		t.Fatal("expected error for namespace containing '/'")
	}
	if _, err := NewAttribute("person", "na/me"); err == nil {
		t.Fatal("expected error for name containing '/'")
	}
	if _, err := NewAttribute("", "name"); err == nil {
		t.Fatal("expected error for empty namespace")
	}
}

func TestAttributeNamespaceAndName(t *testing.T) {
	a, err := NewAttribute("person", "name")
	if err != nil {
		t.Fatalf("NewAttribute: %v", err)
	}
	if a.Namespace() != "person" || a.Name() != "name" {
		t.Fatalf("unexpected split: namespace=%q name=%q", a.Namespace(), a.Name())
	}
	if string(a) != "person/name" {
		t.Fatalf("unexpected encoding: %q", a)
	}
}

func TestAttributeCompare(t *testing.T) {
	a, _ := NewAttribute("person", "age")
	b, _ := NewAttribute("person", "name")
	if a.Compare(b) >= 0 {
		t.Fatal("expected person/age < person/name")
	}
	if a.Compare(a) != 0 {
		t.Fatal("expected a.Compare(a) == 0")
	}
}
