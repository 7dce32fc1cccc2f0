package tree

import (
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
)

func mustParse(t *testing.T, s string) *Tree {
	t.Helper()
	tr, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return tr
}

func TestParseNumbering(t *testing.T) {
	tr := mustParse(t, "((A:1,B:1):1,C:2);")

	if tr.NumNodes() != 5 {
		t.Fatalf("NumNodes = %d, want 5", tr.NumNodes())
	}
	if tr.NumTips() != 3 {
		t.Errorf("NumTips = %d, want 3", tr.NumTips())
	}
	if tr.Root() != 4 {
		t.Errorf("Root = %d, want 4 (root is last)", tr.Root())
	}
	for i, want := range []string{"A", "B", "C"} {
		if got := tr.Node(i).Name; got != want {
			t.Errorf("tip %d = %q, want %q", i, got, want)
		}
	}
	if got := tr.Children(3); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("Children(3) = %v, want [0 1]", got)
	}
	if got := tr.Parent(2); got != 4 {
		t.Errorf("Parent(C) = %d, want 4", got)
	}
	if !tr.IsRoot(4) || tr.IsRoot(3) {
		t.Error("IsRoot mismatch")
	}
	if tr.Parent(tr.Root()) != NoParent {
		t.Error("root should have no parent")
	}
}

func TestAges(t *testing.T) {
	tr := mustParse(t, "((A:1,B:1):1,C:2);")

	if tr.RootAge() != 2 {
		t.Errorf("RootAge = %v, want 2", tr.RootAge())
	}
	tests := []struct {
		node int
		age  float64
	}{
		{0, 0}, {1, 0}, {2, 0}, {3, 1}, {4, 2},
	}
	for _, tt := range tests {
		if got := tr.Age(tt.node); math.Abs(got-tt.age) > 1e-12 {
			t.Errorf("Age(%d) = %v, want %v", tt.node, got, tt.age)
		}
	}
}

func TestPreOrder(t *testing.T) {
	tr := mustParse(t, "((A:1,B:1):1,C:2);")
	if got := tr.PreOrder(); !slices.Equal(got, []int{4, 3, 0, 1, 2}) {
		t.Errorf("PreOrder = %v, want [4 3 0 1 2]", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"polytomy", "(A:1,B:1,C:1);", ErrNotBinary},
		{"unary", "((A:1):1,B:2);", ErrNotBinary},
		{"duplicate", "(A:1,A:1);", ErrDuplicateTaxon},
		{"bad length", "(A:x,B:1);", ErrSyntax},
		{"unbalanced", "((A:1,B:1);", ErrSyntax},
		{"trailing", "(A:1,B:1);junk", ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.input, err, tt.want)
			}
		})
	}
}

func TestNewickRoundTrip(t *testing.T) {
	inputs := []string{
		"((A:1,B:1):1,C:2);",
		"(('Homo sapiens':0.5,B:0.5):1.5,C:2);",
	}
	for _, in := range inputs {
		tr := mustParse(t, in)
		if got := tr.Newick(); got != in {
			t.Errorf("Newick() = %q, want %q", got, in)
		}
	}
}

func TestParseAnnotations(t *testing.T) {
	tr := mustParse(t, `[&R] ((A[&s="0"]:1,B:1)[&posterior=0.9,map={1,0.5:0,0.5}]:1,C:2);`)
	a := tr.Annotations()
	if a == nil {
		t.Fatal("expected annotations")
	}
	if v, ok := a.Number("posterior", 3); !ok || v != 0.9 {
		t.Errorf("posterior = %v, %v; want 0.9", v, ok)
	}
	if v, ok := a.Text("map", 3); !ok || v != "{1,0.5:0,0.5}" {
		t.Errorf("map = %q, %v", v, ok)
	}
	if v, ok := a.Text("s", 0); !ok || v != "0" {
		t.Errorf("quoted value should stay text, got %q, %v", v, ok)
	}
	if _, ok := a.Number("posterior", 0); ok {
		t.Error("posterior should be unset on tip A")
	}

	again := mustParse(t, tr.Newick())
	if v, ok := again.Annotations().Text("map", 3); !ok || v != "{1,0.5:0,0.5}" {
		t.Errorf("round trip map = %q, %v", v, ok)
	}
}

func TestMixedAnnotationTypesBecomeText(t *testing.T) {
	tr := mustParse(t, "((A[&x=1]:1,B[&x=NA]:1):1,C:2);")
	a := tr.Annotations()
	if _, ok := a.Number("x", 0); ok {
		t.Fatal("x should be text when any value is not numeric")
	}
	if v, _ := a.Text("x", 0); v != "1" {
		t.Errorf("x on A = %q, want 1", v)
	}
}

func TestCladeKeys(t *testing.T) {
	a := mustParse(t, "((A:1,B:1):1,C:2);")
	b := mustParse(t, "(C:2,(B:1,A:1):1);")

	order := a.TaxonOrder()
	ka, err := a.CladeKeys(order)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := b.CladeKeys(order)
	if err != nil {
		t.Fatal(err)
	}

	ia, _ := a.TipIndex("A")
	ib, _ := b.TipIndex("A")
	if ka[ia] != kb[ib] {
		t.Error("tip A should have the same clade key in both trees")
	}
	// (A,B) is node 3 in both trees.
	if ka[3] != kb[3] {
		t.Error("clade (A,B) keys differ")
	}
	if ka[a.Root()] != kb[b.Root()] {
		t.Error("root clade keys differ")
	}
	if ka[3] == ka[a.Root()] {
		t.Error("distinct clades share a key")
	}

	other := mustParse(t, "((A:1,D:1):1,C:2);")
	if _, err := other.CladeKeys(order); !errors.Is(err, ErrUnknownTaxon) {
		t.Errorf("CladeKeys with foreign taxon error = %v, want ErrUnknownTaxon", err)
	}
}

func TestBitset(t *testing.T) {
	b := NewBitset(130)
	b.Set(0)
	b.Set(64)
	b.Set(129)
	if b.Count() != 3 {
		t.Errorf("Count = %d, want 3", b.Count())
	}
	if !b.Has(129) || b.Has(1) {
		t.Error("Has mismatch")
	}
	c := NewBitset(130)
	c.Set(1)
	c.Union(b)
	if c.Count() != 4 {
		t.Errorf("Union Count = %d, want 4", c.Count())
	}
	if b.Key() == c.Key() {
		t.Error("different sets share a key")
	}
}

func TestNew(t *testing.T) {
	specs := []Spec{
		{Children: []int{1, 2}},
		{Name: "X", BranchLength: 1},
		{Name: "Y", BranchLength: 3},
	}
	tr, err := New(specs, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Root() != 2 {
		t.Errorf("Root = %d, want 2", tr.Root())
	}
	if tr.RootAge() != 3 {
		t.Errorf("RootAge = %v, want 3", tr.RootAge())
	}
	if tr.Age(0) != 2 {
		t.Errorf("Age(X) = %v, want 2 (non-ultrametric tip)", tr.Age(0))
	}
}

func TestSetAnnotationsSize(t *testing.T) {
	tr := mustParse(t, "(A:1,B:1);")
	if err := tr.SetAnnotations(NewAnnotations(5)); !errors.Is(err, ErrAnnotationSize) {
		t.Errorf("SetAnnotations error = %v, want ErrAnnotationSize", err)
	}
	if err := tr.SetAnnotations(NewAnnotations(3)); err != nil {
		t.Errorf("SetAnnotations: %v", err)
	}
	clone := tr.Clone()
	if clone.Annotations() != nil {
		t.Error("Clone should drop annotations")
	}
}

func TestReadAllNEXUS(t *testing.T) {
	input := `#NEXUS
Begin trees;
	Translate
		1 A,
		2 B,
		3 C
		;
	tree t1 = [&R] ((1:1,2:1):1,3:2);
	tree t2 = [&R] ((1:1,3:1):1,2:2);
End;
`
	trees, err := ReadAll(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(trees) != 2 {
		t.Fatalf("got %d trees, want 2", len(trees))
	}
	if _, ok := trees[1].TipIndex("C"); !ok {
		t.Error("translate table not applied")
	}
	if got := trees[0].Node(0).Name; got != "A" {
		t.Errorf("tip 0 = %q, want A", got)
	}
}

func TestReadAllNewickLines(t *testing.T) {
	input := "((A:1,B:1):1,C:2);\n\n((A:1,C:1):1,B:2);\n"
	trees, err := ReadAll(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(trees) != 2 {
		t.Fatalf("got %d trees, want 2", len(trees))
	}
}

func TestWriteNEXUS(t *testing.T) {
	tr := mustParse(t, "((A:1,B:1):1,C:2);")
	var sb strings.Builder
	if err := WriteNEXUS(&sb, tr, ""); err != nil {
		t.Fatal(err)
	}
	trees, err := ReadAll(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("re-read NEXUS: %v", err)
	}
	if len(trees) != 1 || trees[0].Newick() != tr.Newick() {
		t.Errorf("NEXUS round trip mismatch:\n%s", sb.String())
	}
}

func TestMarshalJSON(t *testing.T) {
	tr := mustParse(t, "((A:1,B:1):1,C:2);")
	a := NewAnnotations(tr.NumNodes())
	a.SetNumber("posterior", 3, 1)
	if err := tr.SetAnnotations(a); err != nil {
		t.Fatal(err)
	}
	data, err := MarshalJSON(tr)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"root": 4`, `"posterior": 1`, `"label": "4"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON missing %s:\n%s", want, s)
		}
	}
}
