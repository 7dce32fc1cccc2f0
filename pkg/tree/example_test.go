package tree_test

import (
	"fmt"

	"github.com/matzehuels/ancsummary/pkg/tree"
)

func ExampleParse() {
	t, _ := tree.Parse("((A:1,B:1):1,C:2);")

	fmt.Println("Nodes:", t.NumNodes())
	fmt.Println("Root:", t.Root(), "label", tree.Label(t.Root()))
	fmt.Println("Root age:", t.RootAge())
	fmt.Println("Pre-order:", t.PreOrder())
	// Output:
	// Nodes: 5
	// Root: 4 label 5
	// Root age: 2
	// Pre-order: [4 3 0 1 2]
}

func ExampleAnnotations() {
	t, _ := tree.Parse("(A:1,B:1);")

	a := tree.NewAnnotations(t.NumNodes())
	a.SetNumber("posterior", t.Root(), 1)
	a.SetText("anc_state_1", t.Root(), "0")
	_ = t.SetAnnotations(a)

	fmt.Println(t.Newick())
	// Output:
	// (A:1,B:1)[&posterior=1,anc_state_1="0"];
}
