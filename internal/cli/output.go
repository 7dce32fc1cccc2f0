package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/ancsummary/pkg/pipeline"
)

// extensions maps formats to file extensions where they differ.
var extensions = map[string]string{
	pipeline.FormatNewick: "tre",
	pipeline.FormatNEXUS:  "nex",
}

func extension(format string) string {
	if ext, ok := extensions[format]; ok {
		return ext
	}
	return format
}

// artifactWriteParams describes where to write a run's artifacts.
type artifactWriteParams struct {
	artifacts map[string][]byte
	formats   []string
	input     string // input path the default output name derives from
	output    string // "-" writes a single artifact to stdout
}

// writeArtifacts writes each artifact to a file. With a single format and an
// explicit output, that exact path is used; otherwise each artifact gets
// base.ext, where base is the output path or the input name stripped of its
// extensions.
func writeArtifacts(p artifactWriteParams) error {
	if p.output == "-" {
		if len(p.formats) != 1 {
			return fmt.Errorf("stdout output needs exactly one format, got %d", len(p.formats))
		}
		_, err := os.Stdout.Write(p.artifacts[p.formats[0]])
		return err
	}

	for _, format := range p.formats {
		data, ok := p.artifacts[format]
		if !ok {
			continue
		}
		path := outputPath(p, format)
		if filepath.Clean(path) == filepath.Clean(p.input) {
			return fmt.Errorf("refusing to overwrite input %s (use --output)", path)
		}
		if err := writeFile(path, data); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}

func outputPath(p artifactWriteParams, format string) string {
	if p.output != "" && len(p.formats) == 1 {
		return p.output
	}
	return basePath(p.output, p.input) + "." + extension(format)
}

// basePath derives the base output path. Without an output it strips the
// extensions (including a trailing .gz) from input; an output carrying a
// known format extension has it stripped.
func basePath(output, input string) string {
	if output == "" {
		base := strings.TrimSuffix(input, ".gz")
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	ext := strings.TrimPrefix(filepath.Ext(output), ".")
	for _, f := range append(knownFormats(), "tre", "nex") {
		if ext == f {
			return strings.TrimSuffix(output, "."+ext)
		}
	}
	return output
}

func knownFormats() []string {
	var out []string
	for f := range pipeline.TreeFormats {
		out = append(out, f)
	}
	for f := range pipeline.TableFormats {
		out = append(out, f)
	}
	return out
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
