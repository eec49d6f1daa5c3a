package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("occurrence")

	first := gen.Next()
	second := gen.Next()

	if first != "occurrence-001" || second != "occurrence-002" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator("member")
	_ = gen.Next()
	gen.Reset("raid")

	if next := gen.Next(); next != "raid-001" {
		t.Fatalf("expected raid-001 after reset, got %q", next)
	}
}
