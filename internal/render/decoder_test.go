package render

import "testing"

func TestDecode_SplitSequences(t *testing.T) {
	t.Parallel()

	emoji := []byte("🤩") // 4 bytes
	tests := []struct {
		name   string
		chunks [][]byte
		want   []string
	}{
		{
			name:   "ascii",
			chunks: [][]byte{[]byte("Hel"), []byte("lo")},
			want:   []string{"Hel", "lo"},
		},
		{
			name:   "two-byte split",
			chunks: [][]byte{{'c', 'a', 'f', 0xC3}, {0xA9, '!'}},
			want:   []string{"caf", "é!"},
		},
		{
			name:   "four-byte split thrice",
			chunks: [][]byte{emoji[:1], emoji[1:3], emoji[3:]},
			want:   []string{"", "", "🤩"},
		},
		{
			name:   "invalid byte replaced",
			chunks: [][]byte{{'a', 0xFF, 'b'}},
			want:   []string{"a�b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var state DecodeState
			for i, chunk := range tt.chunks {
				var got string
				state, got = Decode(state, chunk, false)
				if got != tt.want[i] {
					t.Errorf("chunk %d: Decode() = %q, want %q", i, got, tt.want[i])
				}
			}
			if state.Pending() != 0 {
				t.Errorf("pending = %d after complete input, want 0", state.Pending())
			}
		})
	}
}

func TestDecode_HoldsIncompleteTail(t *testing.T) {
	t.Parallel()

	state, got := Decode(DecodeState{}, []byte{'x', 0xE2, 0x82}, false)
	if got != "x" {
		t.Errorf("Decode() = %q, want %q", got, "x")
	}
	if state.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", state.Pending())
	}

	// The caller's slice must not be retained.
	state2, got := Decode(state, []byte{0xAC}, false)
	if got != "€" || state2.Pending() != 0 {
		t.Errorf("Decode() = %q, pending %d; want %q, 0", got, state2.Pending(), "€")
	}
}

func TestDecode_IncompleteAtEOF(t *testing.T) {
	t.Parallel()

	state, _ := Decode(DecodeState{}, []byte{0xF0, 0x9F}, false)
	state, got := Decode(state, nil, true)
	if got != "�" {
		t.Errorf("flush = %q, want U+FFFD", got)
	}
	if state.Pending() != 0 {
		t.Errorf("pending = %d after EOF, want 0", state.Pending())
	}
}

func TestDecoder_Stream(t *testing.T) {
	t.Parallel()

	src := []byte("Ça va? 🦜 oui")
	var d Decoder
	var out string
	for i := range src {
		out += d.Write(src[i : i+1])
	}
	out += d.Flush()

	if out != string(src) {
		t.Errorf("byte-by-byte decode = %q, want %q", out, src)
	}
	if d.Flush() != "" {
		t.Error("second Flush should return nothing")
	}
}
