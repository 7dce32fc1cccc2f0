package trace

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// maxLineSize bounds a single log line. Character-history logs carry one
// SIMMAP string per node per row and get long on large trees.
const maxLineSize = 256 * 1024 * 1024

// ReadLog parses a tab-delimited sampler log: a header row of labels and one
// row per iteration. Blank lines and lines starting with '#' are skipped. A
// trailing empty column (a common artifact of trailing tabs) is dropped.
func ReadLog(r io.Reader) ([]*StateTrace, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var traces []*StateTrace
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if traces == nil {
			if fields[len(fields)-1] == "" {
				fields = fields[:len(fields)-1]
			}
			traces = make([]*StateTrace, len(fields))
			for i, label := range fields {
				label = strings.TrimSpace(label)
				if err := apperr.ValidateLabel(label); err != nil {
					return nil, fmt.Errorf("header column %d: %w", i+1, err)
				}
				traces[i] = &StateTrace{Label: label}
			}
			continue
		}
		if len(fields) == len(traces)+1 && fields[len(fields)-1] == "" {
			fields = fields[:len(fields)-1]
		}
		if len(fields) != len(traces) {
			return nil, apperr.New(apperr.ErrCodeInvalidInput,
				"line %d has %d columns, header has %d", line, len(fields), len(traces))
		}
		for i, v := range fields {
			traces[i].Values = append(traces[i].Values, strings.TrimSpace(v))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	if traces == nil {
		return nil, apperr.New(apperr.ErrCodeNoSamples, "log has no header")
	}
	return traces, nil
}

// ReadTreeTrace reads a tree trace. Plain Newick (one tree per line) and
// NEXUS input are read directly; otherwise the input is treated as a
// tab-delimited log and trees are taken from column (the last column when
// column is empty).
func ReadTreeTrace(r io.Reader, column string) ([]*tree.Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read tree trace: %w", err)
	}
	first := firstLine(data)
	if strings.HasPrefix(first, "(") || strings.HasPrefix(first, "[") || strings.HasPrefix(strings.ToUpper(first), "#NEXUS") {
		return tree.ReadAll(bytes.NewReader(data))
	}

	traces, err := ReadLog(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	col := traces[len(traces)-1]
	if column != "" {
		found := false
		for _, t := range traces {
			if t.Label == column {
				col, found = t, true
				break
			}
		}
		if !found {
			return nil, apperr.New(apperr.ErrCodeMissingTrace, "tree trace has no column %q", column)
		}
	}

	trees := make([]*tree.Tree, len(col.Values))
	for i, s := range col.Values {
		t, err := tree.Parse(s)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidTree, err, "tree trace sample %d", i)
		}
		trees[i] = t
	}
	return trees, nil
}

// Decompress returns a reader over data, transparently inflating it when it
// starts with the gzip magic bytes. Uploaded logs carry no file name, so the
// content decides.
func Decompress(data []byte) (io.Reader, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return bytes.NewReader(data), nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "gzip")
	}
	return zr, nil
}

func firstLine(data []byte) string {
	for _, l := range bytes.Split(data, []byte("\n")) {
		if s := strings.TrimSpace(string(l)); s != "" {
			return s
		}
	}
	return ""
}
