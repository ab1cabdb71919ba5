// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package stsc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/format"
	"github.com/bpowers/bindoc/internal/sample"
)

func openSTSC(t *testing.T, data []byte) (*dom.Document, error) {
	t.Helper()
	r := format.NewRegistry()
	require.NoError(t, Register(r))
	d, err := r.OpenBuffer(dom.NewBuffer(data))
	if d != nil {
		t.Cleanup(func() { _ = d.Close() })
	}
	return d, err
}

func inspect(t *testing.T, d *dom.Document) string {
	t.Helper()
	var b bytes.Buffer
	require.NoError(t, d.Inspect(&b))
	return b.String()
}

func TestSampleRoundTrip(t *testing.T) {
	data, at := sample.STSC()
	d, err := openSTSC(t, data)
	require.NoError(t, err)
	require.NoError(t, d.Verify())

	out, err := d.Dump()
	require.NoError(t, err)
	require.Equal(t, data, out)

	ins := Instructions(d)
	require.Len(t, ins, 11)
	require.Equal(t, uint8(0x0a), ins[0].Op())
	_, ok := ins[2].(*JumpTable)
	require.True(t, ok)
	_, ok = ins[3].(*ExpressionTree)
	require.True(t, ok)
	_, ok = ins[4].(*ExpressionList)
	require.True(t, ok)

	strs := dom.Find[*String](d)
	require.Len(t, strs, 2)
	require.Equal(t, "hello", strs[0].Text)
	require.Equal(t, "world", strs[1].Text)

	// the trailing padding is never reached and stays raw
	ptr, err := d.Locate(at["padding"])
	require.NoError(t, err)
	require.Equal(t, dom.KindRaw, d.Kind(ptr.Node))

	s := inspect(t, d)
	require.Contains(t, s, "instr(0x0a message, 1, @loc_83, @loc_89)")
	require.Contains(t, s, "instr(0x1d expression_tree, @loc_77, {1, 0, {2, 7, nil, nil}, nil})")
	require.Contains(t, s, "instr(0x1e expression_list, 7, true, {{3, @loc_75}})")
	require.Contains(t, s, `stsc.string("hello")`)
}

func TestRoundTripStability(t *testing.T) {
	data, _ := sample.STSC()
	d, err := openSTSC(t, data)
	require.NoError(t, err)
	out, err := d.Dump()
	require.NoError(t, err)

	again, err := openSTSC(t, out)
	require.NoError(t, err)
	require.Equal(t, inspect(t, d), inspect(t, again))
}

func TestDispatchCompleteness(t *testing.T) {
	require.Equal(t, 28, SupportedCount())
	require.False(t, Supported(0x19))
	require.Equal(t, "unsupported", OpcodeName(0x19))
	require.Equal(t, "message", OpcodeName(0x0a))

	for i := 0; i < 256; i++ {
		op := uint8(i)
		payload := make([]byte, 64)
		payload[0] = op
		buf := dom.NewBuffer(payload)
		d := dom.New(buf)
		k, err := d.SplitAt(0, decodeInstruction(d))
		if Supported(op) {
			require.NoError(t, err, "opcode 0x%02x", op)
			leaf, _ := d.Leaf(k)
			require.Equal(t, op, leaf.(Instr).Op())
			out, err := d.Dump()
			require.NoError(t, err)
			require.Equal(t, payload, out)
		} else {
			var ue *dom.UnsupportedOpcodeError
			require.ErrorAs(t, err, &ue, "opcode 0x%02x", op)
			require.Equal(t, op, ue.Opcode)
			require.Equal(t, int64(0), ue.Pos)
			require.Equal(t, []dom.Kind{dom.KindRaw, dom.KindEof}, []dom.Kind{d.Kind(d.Children(d.Root())[0]), d.Kind(d.Children(d.Root())[1])})
		}
		require.NoError(t, d.Close())
	}
}

func TestOpcode19IsAnError(t *testing.T) {
	d, err := openSTSC(t, sample.STSCWith([]byte{0x19, 0, 0, 0}))
	require.Nil(t, d)
	var ue *dom.UnsupportedOpcodeError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, uint8(0x19), ue.Opcode)
	require.Equal(t, int64(12), ue.Pos)
}

func requireField(t *testing.T, err error, field string) {
	t.Helper()
	var ve *dom.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, field, ve.Field)
}

func TestHeaderValidation(t *testing.T) {
	data := sample.STSCWith([]byte{0x00})
	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)))
	_, err := openSTSC(t, data)
	requireField(t, err, "stsc.header.entry_point")

	data = sample.STSCWith([]byte{0x00})
	binary.LittleEndian.PutUint32(data[8:], 8)
	_, err = openSTSC(t, data)
	requireField(t, err, "stsc.header.flags")
}

func TestHeaderBlocks(t *testing.T) {
	data := sample.STSCWith(nil)
	binary.LittleEndian.PutUint32(data[4:], 12+12+2)
	binary.LittleEndian.PutUint32(data[8:], FlagExtra2|FlagExtra3)
	data = append(data, bytes.Repeat([]byte{0xee}, 14)...)
	data = append(data, 0x00)

	d, err := openSTSC(t, data)
	require.NoError(t, err)
	h := dom.Find[*Header](d)[0]
	require.Equal(t, int64(12+14), h.Size())
	require.Nil(t, h.Extra[0])
	require.Len(t, h.Extra[1], 12)
	require.Len(t, h.Extra[2], 2)

	out, err := d.Dump()
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestPayloadValidation(t *testing.T) {
	u16 := func(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
	u32 := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
	cat := func(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

	for _, tc := range []struct {
		name  string
		code  []byte
		field string
	}{
		{"tree index", cat([]byte{0x1d}, u16(1), u32(12), []byte{1}, u32(0), u16(2), u16(0)), "stsc.expression_tree.left"},
		{"tree right index", cat([]byte{0x1d}, u16(1), u32(12), []byte{1}, u32(0), u16(0), u16(9)), "stsc.expression_tree.right"},
		{"tree count", cat([]byte{0x1d}, u16(100), u32(12)), "stsc.expression_tree.count"},
		{"list flag mask", cat([]byte{0x1e}, u16(0), u16(0x8801), u32(0), u32(12)), "stsc.expression_list.size"},
		{"list count", cat([]byte{0x1e}, u16(0), u16(40), u32(0), u32(12)), "stsc.expression_list.size"},
		{"jump table count", cat([]byte{0x0d, 3}, u32(12)), "stsc.jump_table.count"},
		{"jump target", cat([]byte{0x01}, u32(0x1000)), "stsc.jump.arg0"},
		{"jump into instruction", cat([]byte{0x01}, u32(13)), "stsc.code"},
		{"jump into header", cat([]byte{0x01}, u32(4)), "stsc.code"},
		{"unterminated string", cat([]byte{0x18}, u32(18), []byte{0x00, 'a', 'b'}), "stsc.string"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, err := openSTSC(t, sample.STSCWith(tc.code))
			require.Nil(t, d)
			requireField(t, err, tc.field)
		})
	}
}

func TestTruncatedInstruction(t *testing.T) {
	_, err := openSTSC(t, sample.STSCWith([]byte{0x07, 1, 0}))
	var be *dom.BoundsError
	require.ErrorAs(t, err, &be)
}

func TestEditKeepsTargets(t *testing.T) {
	data, at := sample.STSC()
	d, err := openSTSC(t, data)
	require.NoError(t, err)

	// replace the nop at "sub" by a wider set_var
	ptr, err := d.Locate(at["sub"])
	require.NoError(t, err)
	leaf, _ := d.Leaf(ptr.Node)
	require.Equal(t, "nop", OpcodeName(leaf.(Instr).Op()))
	set, err := NewInstruction(0x07, Arg{Kind: ArgU16, Value: 9}, Arg{Kind: ArgU32, Value: 42})
	require.NoError(t, err)
	require.NoError(t, d.Replace(ptr.Node, set))

	_, err = d.Dump()
	require.ErrorIs(t, err, dom.ErrNotFixedUp)
	require.NoError(t, d.Fixup())
	out, err := d.Dump()
	require.NoError(t, err)
	require.Len(t, out, len(data)+6)

	again, err := openSTSC(t, out)
	require.NoError(t, err)
	ins := Instructions(again)
	require.Len(t, ins, 11)

	// jump_if still targets the replaced instruction
	jumpIf := ins[1].(*Instruction)
	require.Equal(t, "jump_if", OpcodeName(jumpIf.Opcode))
	target, ok := again.LabelLeaf(jumpIf.Args[1].Label)
	require.True(t, ok)
	require.Equal(t, uint8(0x07), target.(Instr).Op())

	// strings moved but are still found
	strs := dom.Find[*String](again)
	require.Len(t, strs, 2)
	require.Equal(t, "world", strs[1].Text)
	pos, err := again.LabelPos(ins[0].(*Instruction).Args[2].Label)
	require.NoError(t, err)
	assert.Equal(t, at["line"]+6, pos)
}

func TestNewInstruction(t *testing.T) {
	_, err := NewInstruction(0x19)
	var ue *dom.UnsupportedOpcodeError
	require.ErrorAs(t, err, &ue)
	_, err = NewInstruction(0x0d)
	require.Error(t, err)
	_, err = NewInstruction(0x07, Arg{Kind: ArgU16})
	require.Error(t, err)
	_, err = NewInstruction(0x07, Arg{Kind: ArgU32}, Arg{Kind: ArgU32})
	require.Error(t, err)
}

func TestOpcodeIsReadOnly(t *testing.T) {
	data, _ := sample.STSC()
	d, err := openSTSC(t, data)
	require.NoError(t, err)

	msg := Instructions(d)[0].(*Instruction)
	require.Equal(t, uint8(0x0a), msg.Opcode)
	fields, err := dom.Fields(msg)
	require.NoError(t, err)
	require.Equal(t, dom.Field{Name: "opcode", Type: "u8", Settable: false}, fields[0])

	require.Error(t, dom.SetField(msg, "opcode", 0x19))
	require.Equal(t, uint8(0x0a), msg.Opcode)
	out, err := d.Dump()
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestDumpChecksLayout(t *testing.T) {
	for name, in := range map[string]*Instruction{
		"unsupported": {Opcode: 0x19},
		"special":     {Opcode: 0x0d},
		"arity":       {Opcode: 0x07, Args: []Arg{{Kind: ArgU16}}},
		"kind":        {Opcode: 0x07, Args: []Arg{{Kind: ArgU32}, {Kind: ArgU32}}},
	} {
		require.Error(t, in.Dump(dom.NewSink()), name)
	}

	var ue *dom.UnsupportedOpcodeError
	require.ErrorAs(t, (&Instruction{Opcode: 0x19}).Dump(dom.NewSink()), &ue)
	require.Equal(t, uint8(0x19), ue.Opcode)
}

func TestZeroInstruction(t *testing.T) {
	nop := &Instruction{Opcode: 0x17}
	require.False(t, nop.Terminal())
	var b bytes.Buffer
	require.NoError(t, nop.Inspect(&b))
	require.Equal(t, "instr(0x17 nop)\n", b.String())
	s := dom.NewSink()
	require.NoError(t, nop.Dump(s))
	require.Equal(t, []byte{0x17}, s.Bytes())

	end := &Instruction{}
	require.True(t, end.Terminal())
	require.Equal(t, int64(1), end.Size())
}

func TestIntrospection(t *testing.T) {
	r := format.NewRegistry()
	require.NoError(t, Register(r))
	var names []string
	for _, lt := range r.Types() {
		names = append(names, lt.Name)
		require.Equal(t, Name, lt.Format)
		leaf, err := r.NewLeaf(lt.Name)
		require.NoError(t, err)
		require.Equal(t, lt.Name, leaf.TypeName())
		_, err = dom.Fields(leaf)
		require.NoError(t, err)
	}
	require.Equal(t, []string{
		"stsc.expression_list", "stsc.expression_tree", "stsc.header",
		"stsc.instruction", "stsc.jump_table", "stsc.string",
	}, names)

	leaf, err := r.NewLeaf("stsc.string")
	require.NoError(t, err)
	require.NoError(t, dom.SetField(leaf, "text", "hi"))
	require.Equal(t, int64(3), leaf.Size())
}
