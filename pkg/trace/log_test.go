package trace

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
)

const sampleLog = `# generated by a sampler
Iteration	1	2	end_3	
0	0	1	1	
10	1	1	0	

20	1	0	1	
`

func TestReadLog(t *testing.T) {
	traces, err := ReadLog(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(traces) != 4 {
		t.Fatalf("got %d traces, want 4", len(traces))
	}
	wantLabels := []string{"Iteration", "1", "2", "end_3"}
	for i, tr := range traces {
		if tr.Label != wantLabels[i] {
			t.Errorf("trace %d label = %q, want %q", i, tr.Label, wantLabels[i])
		}
		if tr.Len() != 3 {
			t.Errorf("trace %q has %d samples, want 3", tr.Label, tr.Len())
		}
	}
	if got := traces[3].At(1); got != "0" {
		t.Errorf("end_3[1] = %q, want 0", got)
	}
}

func TestReadLogErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  apperr.Code
	}{
		{"empty", "", apperr.ErrCodeNoSamples},
		{"comments only", "# nothing\n", apperr.ErrCodeNoSamples},
		{"short row", "1\t2\n0\n", apperr.ErrCodeInvalidInput},
		{"empty label", "1\t\t2\n0\t1\t2\n", apperr.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadLog(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := apperr.GetCode(err); got != tt.code {
				t.Errorf("code = %q, want %q (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestReadLogSIMMAP(t *testing.T) {
	input := "Iteration\t1\t2\n0\t{1,0.5:0,0.5}\t{0,1}\n"
	traces, err := ReadLog(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if got := traces[1].At(0); got != "{1,0.5:0,0.5}" {
		t.Errorf("history = %q", got)
	}
}

func TestDecompress(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(sampleLog))
	zw.Close()

	for name, data := range map[string][]byte{"plain": []byte(sampleLog), "gzip": buf.Bytes()} {
		r, err := Decompress(data)
		if err != nil {
			t.Fatalf("%s: Decompress: %v", name, err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		if string(got) != sampleLog {
			t.Errorf("%s: content mismatch", name)
		}
	}

	if _, err := Decompress([]byte{0x1f, 0x8b, 0x00}); !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("truncated gzip: got %v, want INVALID_INPUT", err)
	}
}

func TestReadTreeTrace(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		column string
		want   int
		code   apperr.Code
	}{
		{name: "newick lines", input: "(A:1,B:1);\n(A:2,B:2);\n", want: 2},
		{name: "log last column", input: "Iteration\tpsi\n0\t(A:1,B:1);\n1\t(A:1,B:1);\n2\t(B:1,A:1);\n", want: 3},
		{name: "log named column", input: "psi\tIteration\n(A:1,B:1);\t0\n", column: "psi", want: 1},
		{name: "log missing column", input: "Iteration\tpsi\n0\t(A:1,B:1);\n", column: "tree", code: apperr.ErrCodeMissingTrace},
		{name: "bad tree", input: "Iteration\tpsi\n0\t(A:1,B:1,C:1);\n", code: apperr.ErrCodeInvalidTree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trees, err := ReadTreeTrace(strings.NewReader(tt.input), tt.column)
			if tt.code != "" {
				if got := apperr.GetCode(err); got != tt.code {
					t.Fatalf("code = %q, want %q (err %v)", got, tt.code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadTreeTrace: %v", err)
			}
			if len(trees) != tt.want {
				t.Errorf("got %d trees, want %d", len(trees), tt.want)
			}
		})
	}
}
