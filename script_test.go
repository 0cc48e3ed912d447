// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package machine

import (
	"testing"
)

// TestDisasmString ensures programs disassemble to the expected one line
// output, including the partial output on malformed pushes.
func TestDisasmString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		program []byte
		want    string
		wantErr bool
	}{
		{
			name:    "empty",
			program: nil,
			want:    "",
		},
		{
			name:    "simple",
			program: []byte{OP_1, OP_2, OP_ADD},
			want:    "OP_1 OP_2 OP_ADD",
		},
		{
			name:    "data push",
			program: []byte{0x02, 0xab, 0xcd, OP_EQUAL},
			want:    "abcd OP_EQUAL",
		},
		{
			name:    "op_0 keeps its name",
			program: []byte{OP_0, OP_IF, OP_ENDIF},
			want:    "OP_0 OP_IF OP_ENDIF",
		},
		{
			name:    "pushdata1",
			program: []byte{OP_PUSHDATA1, 0x01, 0xee},
			want:    "ee",
		},
		{
			name:    "truncated push",
			program: []byte{OP_1, 0x05, 0x01},
			want:    "OP_1 [error]",
			wantErr: true,
		},
		{
			name:    "truncated pushdata length",
			program: []byte{OP_PUSHDATA2, 0x01},
			want:    "[error]",
			wantErr: true,
		},
	}

	for _, test := range tests {
		got, err := DisasmString(test.program)
		if test.wantErr {
			if !IsErrorCode(err, ErrBadOpcode) {
				t.Errorf("%s: expected malformed push error, "+
					"got %v", test.name, err)
				continue
			}
		} else if err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
			continue
		}

		if got != test.want {
			t.Errorf("%s: got %q, want %q", test.name, got,
				test.want)
		}
	}
}

// TestIsPushOnly ensures the push-only classification matches the opcode
// ranges that count as pushes.
func TestIsPushOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		program []byte
		want    bool
	}{
		{"empty", nil, true},
		{"small ints", []byte{OP_0, OP_1, OP_16, OP_1NEGATE}, true},
		{"data pushes", []byte{0x02, 0x11, 0x22, OP_PUSHDATA1, 0x01, 0xee}, true},
		{"reserved counts as push", []byte{OP_RESERVED}, true},
		{"nop is not a push", []byte{OP_1, OP_NOP}, false},
		{"malformed push", []byte{0x05, 0x01}, false},
	}

	for _, test := range tests {
		if got := IsPushOnly(test.program); got != test.want {
			t.Errorf("%s: got %v, want %v", test.name, got,
				test.want)
		}
	}
}
