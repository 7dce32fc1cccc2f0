package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, input string
		want          string
	}{
		{"", "run/states.log", "run/states"},
		{"", "run/states.log.gz", "run/states"},
		{"", "map.tree", "map"},
		{"out/ase", "states.log", "out/ase"},
		{"out/ase.svg", "states.log", "out/ase"},
		{"out/ase.nex", "states.log", "out/ase"},
		{"out/ase.v2", "states.log", "out/ase.v2"},
	}
	for _, tt := range tests {
		if got := basePath(tt.output, tt.input); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	single := artifactWriteParams{formats: []string{"svg"}, input: "states.log", output: "figure.svg"}
	if got := outputPath(single, "svg"); got != "figure.svg" {
		t.Errorf("single format: %q", got)
	}

	multi := artifactWriteParams{formats: []string{"newick", "nexus"}, input: "states.log"}
	if got := outputPath(multi, "newick"); got != "states.tre" {
		t.Errorf("newick: %q", got)
	}
	if got := outputPath(multi, "nexus"); got != "states.nex" {
		t.Errorf("nexus: %q", got)
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "states.log")

	err := writeArtifacts(artifactWriteParams{
		artifacts: map[string][]byte{"newick": []byte("(A,B);\n"), "dot": []byte("digraph {}\n")},
		formats:   []string{"newick", "dot"},
		input:     input,
		output:    filepath.Join(dir, "out", "ase"),
	})
	if err != nil {
		t.Fatalf("writeArtifacts: %v", err)
	}
	for _, name := range []string{"ase.tre", "ase.dot"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestWriteArtifactsRefusesInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ase.svg")
	if err := os.WriteFile(input, []byte("<svg/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := writeArtifacts(artifactWriteParams{
		artifacts: map[string][]byte{"svg": []byte("<svg></svg>")},
		formats:   []string{"svg"},
		input:     input,
	})
	if err == nil || !strings.Contains(err.Error(), "refusing to overwrite") {
		t.Fatalf("err = %v, want overwrite refusal", err)
	}
	data, _ := os.ReadFile(input)
	if string(data) != "<svg/>" {
		t.Errorf("input was modified: %q", data)
	}
}

func TestWriteArtifactsStdoutNeedsOneFormat(t *testing.T) {
	err := writeArtifacts(artifactWriteParams{
		artifacts: map[string][]byte{"svg": nil, "png": nil},
		formats:   []string{"svg", "png"},
		output:    "-",
	})
	if err == nil {
		t.Error("expected error for two formats on stdout")
	}
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.nwk")
	if err := os.WriteFile(path, []byte("(A,B);"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := readInput(path)
	if err != nil || string(data) != "(A,B);" {
		t.Errorf("readInput = %q, %v", data, err)
	}
	if _, err := readInput(path + ".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}
