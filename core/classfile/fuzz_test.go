package classfile

import (
	"strings"
	"testing"

	fuzz "github.com/google/gofuzz"
)

// parseMutated parses data and reports panics other than the decoder's
// unknown opcode check.
func parseMutated(t *testing.T, data []byte) {
	t.Helper()
	defer func() {
		if p := recover(); p != nil {
			msg, ok := p.(string)
			if !ok || !strings.HasPrefix(msg, "classfile: unknown opcode") {
				t.Fatalf("parse panicked on %x: %v", data, p)
			}
		}
	}()
	cf, err := Parse(data)
	if err == nil && cf == nil {
		t.Fatalf("nil class without error")
	}
}

func TestParseMutations(t *testing.T) {
	cf, _ := printClass(t)
	valid, err := cf.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	f := fuzz.NewWithSeed(1)
	for i := 0; i < 2000; i++ {
		data := append([]byte(nil), valid...)
		var edits []struct {
			Pos uint16
			Val byte
		}
		f.NumElements(1, 4).Fuzz(&edits)
		for _, e := range edits {
			data[int(e.Pos)%len(data)] = e.Val
		}
		var cut uint16
		f.Fuzz(&cut)
		if cut%4 == 0 {
			data = data[:int(cut)%len(data)]
		}
		parseMutated(t, data)
	}
}

func TestParseRandom(t *testing.T) {
	f := fuzz.NewWithSeed(2).NilChance(0)
	for i := 0; i < 500; i++ {
		var data []byte
		f.Fuzz(&data)
		parseMutated(t, append([]byte{0xca, 0xfe, 0xba, 0xbe}, data...))
	}
}
