// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blob is a leaf holding opaque bytes.
type blob struct {
	Data   []byte
	closed bool
}

func (b *blob) TypeName() string { return "test.blob" }
func (b *blob) Size() int64      { return int64(len(b.Data)) }
func (b *blob) Dump(s *Sink) error {
	s.WriteBytes(b.Data)
	return nil
}
func (b *blob) Inspect(w io.Writer) error {
	_, err := fmt.Fprintf(w, "blob(%x)\n", b.Data)
	return err
}
func (b *blob) Close() error {
	b.closed = true
	return nil
}

func blobOf(n int64) BuildFunc {
	return func(src *Source) (Leaf, error) {
		data, err := src.Bytes(n)
		if err != nil {
			return nil, err
		}
		return &blob{Data: append([]byte(nil), data...)}, nil
	}
}

// ref is a leaf holding a u32 absolute position.
type ref struct {
	Target *Label `bindoc:"target"`
}

func (r *ref) TypeName() string   { return "test.ref" }
func (r *ref) Size() int64        { return 4 }
func (r *ref) Dump(s *Sink) error { return s.WriteLabel32(r.Target) }
func (r *ref) Inspect(w io.Writer) error {
	_, err := fmt.Fprintf(w, "ref(%s)\n", r.Target)
	return err
}

func refIn(d *Document) BuildFunc {
	return func(src *Source) (Leaf, error) {
		v, err := src.ReadU32()
		if err != nil {
			return nil, err
		}
		l, err := d.LabelAt(int64(v))
		if err != nil {
			return nil, err
		}
		return &ref{Target: l}, nil
	}
}

func newDoc(t *testing.T, data []byte) *Document {
	t.Helper()
	buf := NewBuffer(data)
	d := New(buf)
	require.NoError(t, buf.Release())
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func requireDump(t *testing.T, d *Document, want []byte) {
	t.Helper()
	out, err := d.Dump()
	require.NoError(t, err)
	require.Equal(t, want, out)
	require.NoError(t, d.Verify())
}

func kinds(d *Document) []Kind {
	var out []Kind
	for _, c := range d.Children(d.Root()) {
		out = append(out, d.Kind(c))
	}
	return out
}

func TestNewDocument(t *testing.T) {
	d := newDoc(t, seq(32))
	require.Equal(t, int64(32), d.Size())
	require.Equal(t, []Kind{KindRaw, KindEof}, kinds(d))
	requireDump(t, d, seq(32))

	empty := newDoc(t, nil)
	require.Equal(t, []Kind{KindEof}, kinds(empty))
	requireDump(t, empty, []byte{})
}

func TestSplitConservesBytes(t *testing.T) {
	for _, tc := range []struct {
		off, size int64
		want      []Kind
	}{
		{0, 4, []Kind{KindLeaf, KindRaw, KindEof}},
		{4, 4, []Kind{KindRaw, KindLeaf, KindRaw, KindEof}},
		{28, 4, []Kind{KindRaw, KindLeaf, KindEof}},
		{0, 32, []Kind{KindLeaf, KindEof}},
		{9, 0, []Kind{KindRaw, KindLeaf, KindRaw, KindEof}},
	} {
		t.Run(fmt.Sprintf("%d+%d", tc.off, tc.size), func(t *testing.T) {
			d := newDoc(t, seq(32))
			raw := d.Children(d.Root())[0]
			k, err := d.Split(Pointer{Node: raw, Offset: tc.off}, blobOf(tc.size))
			require.NoError(t, err)
			require.Equal(t, tc.want, kinds(d))
			require.False(t, d.Has(raw))

			pos, ok := d.Pos(k)
			require.True(t, ok)
			require.Equal(t, tc.off, pos)
			require.Equal(t, tc.size, d.NodeSize(k))
			require.Equal(t, int64(32), d.Size())
			requireDump(t, d, seq(32))
		})
	}
}

func TestSplitAtAndLocate(t *testing.T) {
	d := newDoc(t, seq(32))
	_, err := d.SplitAt(8, blobOf(8))
	require.NoError(t, err)

	ptr, err := d.Locate(10)
	require.NoError(t, err)
	require.Equal(t, KindLeaf, d.Kind(ptr.Node))
	require.Equal(t, int64(2), ptr.Offset)

	ptr, err = d.Locate(16)
	require.NoError(t, err)
	require.Equal(t, KindRaw, d.Kind(ptr.Node))
	require.Zero(t, ptr.Offset)

	ptr, err = d.Locate(32)
	require.NoError(t, err)
	require.Equal(t, d.Eof(), ptr.Node)

	_, err = d.Locate(33)
	var be *BoundsError
	require.ErrorAs(t, err, &be)

	// leaves cannot be split again
	_, err = d.SplitAt(10, blobOf(1))
	var se *StructuralInvariantError
	require.ErrorAs(t, err, &se)
}

func TestSplitRollback(t *testing.T) {
	d := newDoc(t, seq(32))
	keep, err := d.LabelAt(20)
	require.NoError(t, err)
	before := d.Children(d.Root())

	boom := errors.New("boom")
	_, err = d.SplitAt(4, func(src *Source) (Leaf, error) {
		if _, err := d.LabelAt(12); err != nil {
			return nil, err
		}
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, before, d.Children(d.Root()))

	_, ok := d.Label("loc_c")
	require.False(t, ok)
	require.Equal(t, []*Label{keep}, d.Labels())
	pos, err := d.LabelPos(keep)
	require.NoError(t, err)
	require.Equal(t, int64(20), pos)
	requireDump(t, d, seq(32))
}

func TestSplitLeafTooLarge(t *testing.T) {
	d := newDoc(t, seq(32))
	big := &blob{Data: make([]byte, 40)}
	_, err := d.SplitAt(0, func(src *Source) (Leaf, error) { return big, nil })
	var se *StructuralInvariantError
	require.ErrorAs(t, err, &se)
	require.True(t, big.closed)
	require.Equal(t, []Kind{KindRaw, KindEof}, kinds(d))
}

func TestSplitDuringSplit(t *testing.T) {
	d := newDoc(t, seq(32))
	raw := d.Children(d.Root())[0]
	_, err := d.Split(Pointer{Node: raw}, func(src *Source) (Leaf, error) {
		if _, err := d.Split(Pointer{Node: raw, Offset: 8}, blobOf(4)); err != nil {
			return nil, err
		}
		return &blob{}, nil
	})
	var se *StructuralInvariantError
	require.ErrorAs(t, err, &se)
	require.Equal(t, []Kind{KindRaw, KindEof}, kinds(d))
}

func TestEditDuringSplit(t *testing.T) {
	d := newDoc(t, seq(32))
	raw := d.Children(d.Root())[0]
	var se *StructuralInvariantError
	for name, edit := range map[string]func() error{
		"remove":  func() error { return d.Remove(raw) },
		"replace": func() error { return d.Replace(raw, &blob{}) },
		"merge": func() error {
			_, err := d.Merge(raw, raw)
			return err
		},
	} {
		_, err := d.Split(Pointer{Node: raw}, func(src *Source) (Leaf, error) {
			if err := edit(); err != nil {
				return nil, err
			}
			return &blob{}, nil
		})
		require.ErrorAs(t, err, &se, name)
		require.Equal(t, []Kind{KindRaw, KindEof}, kinds(d), name)
	}
	requireDump(t, d, seq(32))
}

func TestLabelDedup(t *testing.T) {
	d := newDoc(t, seq(32))
	a, err := d.LabelAt(5)
	require.NoError(t, err)
	b, err := d.LabelAt(5)
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, "loc_5", a.Name())

	// a logical anchor does not materialize nodes
	require.Equal(t, []Kind{KindRaw, KindEof}, kinds(d))

	end, err := d.LabelAt(32)
	require.NoError(t, err)
	ptr, err := d.LabelTarget(end)
	require.NoError(t, err)
	require.Equal(t, d.Eof(), ptr.Node)

	_, err = d.LabelAt(33)
	var be *BoundsError
	require.ErrorAs(t, err, &be)
}

func TestLabelReanchoring(t *testing.T) {
	d := newDoc(t, seq(32))
	labels := make(map[int64]*Label)
	for _, abs := range []int64{0, 3, 4, 7, 8, 10, 31} {
		l, err := d.LabelAt(abs)
		require.NoError(t, err)
		labels[abs] = l
	}

	_, err := d.SplitAt(4, blobOf(4))
	require.NoError(t, err)
	leafKey, err := d.SplitAt(10, blobOf(2))
	require.NoError(t, err)

	for abs, l := range labels {
		pos, err := d.LabelPos(l)
		require.NoError(t, err)
		assert.Equal(t, abs, pos, l.Name())
		again, err := d.LabelAt(abs)
		require.NoError(t, err)
		assert.Same(t, l, again, l.Name())
	}

	leaf, ok := d.LabelLeaf(labels[10])
	require.True(t, ok)
	got, _ := d.Leaf(leafKey)
	require.Same(t, got, leaf)

	ptr, err := d.LabelTarget(labels[7])
	require.NoError(t, err)
	require.Equal(t, KindLeaf, d.Kind(ptr.Node))
	require.Equal(t, int64(3), ptr.Offset)
	_, ok = d.LabelLeaf(labels[7])
	require.False(t, ok)
}

func TestNamedLabel(t *testing.T) {
	d := newDoc(t, seq(32))
	raw := d.Children(d.Root())[0]
	auto, err := d.LabelAt(6)
	require.NoError(t, err)

	named, err := d.NamedLabel("entry", Pointer{Node: raw, Offset: 6})
	require.NoError(t, err)
	require.Same(t, auto, named)
	require.Equal(t, "entry", named.Name())
	_, ok := d.Label("loc_6")
	require.False(t, ok)

	_, err = d.NamedLabel("entry", Pointer{Node: raw, Offset: 7})
	require.Error(t, err)
	_, err = d.NamedLabel("far", Pointer{Node: raw, Offset: 33})
	require.Error(t, err)

	// generated names avoid collisions with named labels
	_, err = d.NamedLabel("loc_9", Pointer{Node: raw, Offset: 1})
	require.NoError(t, err)
	l, err := d.LabelAt(9)
	require.NoError(t, err)
	require.Equal(t, "loc_9_1", l.Name())
}

func TestNamedLabelCanonicalAnchor(t *testing.T) {
	d := newDoc(t, seq(16))
	k, err := d.SplitAt(0, blobOf(4))
	require.NoError(t, err)

	// the end of the blob is the start of the raw node after it
	end, err := d.NamedLabel("end_of_blob", Pointer{Node: k, Offset: 4})
	require.NoError(t, err)
	at, err := d.LabelAt(4)
	require.NoError(t, err)
	require.Same(t, end, at)

	start, err := d.NamedLabel("start", Pointer{Node: d.Root()})
	require.NoError(t, err)
	at, err = d.LabelAt(0)
	require.NoError(t, err)
	require.Same(t, start, at)
	target, err := d.LabelTarget(start)
	require.NoError(t, err)
	require.Equal(t, Pointer{Node: k}, target)

	last, err := d.NamedLabel("last", Pointer{Node: d.Children(d.Root())[1], Offset: 12})
	require.NoError(t, err)
	at, err = d.LabelAt(16)
	require.NoError(t, err)
	require.Same(t, last, at)
}

func TestEditFixupDump(t *testing.T) {
	data := seq(16)
	binary.LittleEndian.PutUint32(data, 12)
	d := newDoc(t, data)

	refKey, err := d.SplitAt(0, refIn(d))
	require.NoError(t, err)
	requireDump(t, d, data)

	_, err = d.InsertRaw(d.Root(), 1, []byte{0xaa, 0xbb, 0xcc})
	require.NoError(t, err)

	_, err = d.Dump()
	require.ErrorIs(t, err, ErrNotFixedUp)

	require.NoError(t, d.Fixup())
	require.Equal(t, int64(19), d.Size())
	out, err := d.Dump()
	require.NoError(t, err)
	require.NoError(t, d.Verify())
	require.Equal(t, uint32(15), binary.LittleEndian.Uint32(out))
	require.Equal(t, []byte{0xaa, 0xbb, 0xcc}, out[4:7])
	require.Equal(t, data[4:], out[7:])

	leaf, ok := d.Leaf(refKey)
	require.True(t, ok)
	pos, err := d.LabelPos(leaf.(*ref).Target)
	require.NoError(t, err)
	require.Equal(t, int64(15), pos)

	// dumping is stable once fixed up
	again, err := d.Dump()
	require.NoError(t, err)
	require.Equal(t, out, again)
}

func TestLeafMutationNeedsFixup(t *testing.T) {
	d := newDoc(t, seq(16))
	k, err := d.SplitAt(4, blobOf(4))
	require.NoError(t, err)
	leaf, _ := d.Leaf(k)
	leaf.(*blob).Data = append(leaf.(*blob).Data, 0xff)

	_, err = d.Dump()
	require.ErrorIs(t, err, ErrNotFixedUp)

	require.NoError(t, d.Fixup())
	out, err := d.Dump()
	require.NoError(t, err)
	want := append(append(append([]byte{}, seq(16)[:8]...), 0xff), seq(16)[8:]...)
	require.Equal(t, want, out)
}

func TestDanglingLabel(t *testing.T) {
	data := seq(16)
	binary.LittleEndian.PutUint32(data, 8)
	d := newDoc(t, data)

	_, err := d.SplitAt(0, refIn(d))
	require.NoError(t, err)
	target, err := d.SplitAt(8, blobOf(4))
	require.NoError(t, err)

	l, ok := d.Label("loc_8")
	require.True(t, ok)
	leaf, _ := d.Leaf(target)
	require.NoError(t, d.Remove(target))
	require.True(t, l.Dangling())
	require.True(t, leaf.(*blob).closed)
	require.NoError(t, d.Fixup())

	_, err = d.Dump()
	var re *ResolveError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "loc_8", re.Label)

	// the failed dump left the tree alone
	require.NoError(t, d.Verify())
	require.Equal(t, int64(12), d.Size())
}

func TestReplaceDetachesLabelsPastEnd(t *testing.T) {
	data := seq(16)
	binary.LittleEndian.PutUint32(data, 10)
	d := newDoc(t, data)

	_, err := d.SplitAt(0, refIn(d))
	require.NoError(t, err)
	past, ok := d.Label("loc_a")
	require.True(t, ok)
	start, err := d.LabelAt(4)
	require.NoError(t, err)

	rest := d.Children(d.Root())[1]
	require.Equal(t, KindRaw, d.Kind(rest))
	require.NoError(t, d.Replace(rest, &blob{Data: []byte{1, 2, 3, 4}}))
	require.True(t, past.Dangling())
	require.False(t, start.Dangling())

	require.NoError(t, d.Fixup())
	require.Equal(t, int64(8), d.Size())
	pos, err := d.LabelPos(start)
	require.NoError(t, err)
	require.Equal(t, int64(4), pos)

	// the end of the document has its own label again
	end, err := d.LabelAt(8)
	require.NoError(t, err)
	require.NotSame(t, past, end)

	_, err = d.Dump()
	var re *ResolveError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "loc_a", re.Label)
}

func TestStructuralInvariants(t *testing.T) {
	d := newDoc(t, seq(16))
	raw := d.Children(d.Root())[0]
	var se *StructuralInvariantError

	require.ErrorAs(t, d.Remove(d.Eof()), &se)
	require.ErrorAs(t, d.Remove(d.Root()), &se)
	require.ErrorAs(t, d.Remove(Key(999)), &se)

	// nothing may follow the Eof sentinel
	_, err := d.InsertLeaf(d.Root(), 2, &blob{})
	require.ErrorAs(t, err, &se)
	_, err = d.InsertLeaf(raw, 0, &blob{})
	require.ErrorAs(t, err, &se)
	_, err = d.InsertLeaf(d.Root(), -1, &blob{})
	require.ErrorAs(t, err, &se)
	_, err = d.InsertLeaf(d.Root(), 0, nil)
	require.ErrorAs(t, err, &se)

	require.ErrorAs(t, d.Replace(d.Root(), &blob{}), &se)
	require.ErrorAs(t, d.Replace(d.Eof(), &blob{}), &se)

	requireDump(t, d, seq(16))
}

func TestCompositeEdits(t *testing.T) {
	d := newDoc(t, seq(8))
	c, err := d.InsertComposite(d.Root(), 1)
	require.NoError(t, err)
	_, err = d.InsertLeaf(c, 0, &blob{Data: []byte("xy")})
	require.NoError(t, err)
	_, err = d.InsertRaw(c, 1, []byte("z"))
	require.NoError(t, err)
	require.Len(t, d.Children(c), 2)
	require.Equal(t, c, d.Parent(d.Children(c)[0]))

	require.NoError(t, d.Fixup())
	require.Equal(t, int64(3), d.NodeSize(c))
	requireDump(t, d, append(seq(8), 'x', 'y', 'z'))

	first := d.Children(c)[0]
	require.NoError(t, d.Replace(first, &blob{Data: []byte("q")}))
	require.NoError(t, d.Fixup())
	requireDump(t, d, append(seq(8), 'q', 'z'))

	require.NoError(t, d.Remove(c))
	require.NoError(t, d.Fixup())
	requireDump(t, d, seq(8))
}

func TestMerge(t *testing.T) {
	d := newDoc(t, seq(16))
	mid, err := d.SplitAt(6, blobOf(0))
	require.NoError(t, err)
	l, err := d.LabelAt(10)
	require.NoError(t, err)

	children := d.Children(d.Root())
	require.Len(t, children, 4)
	prefix, suffix := children[0], children[2]

	var se *StructuralInvariantError
	_, err = d.Merge(prefix, suffix)
	require.ErrorAs(t, err, &se)

	require.NoError(t, d.Remove(mid))
	merged, err := d.Merge(prefix, suffix)
	require.NoError(t, err)
	require.Equal(t, prefix, merged)
	require.Equal(t, []Kind{KindRaw, KindEof}, kinds(d))
	require.NoError(t, d.Fixup())

	pos, err := d.LabelPos(l)
	require.NoError(t, err)
	require.Equal(t, int64(10), pos)
	requireDump(t, d, seq(16))

	// bytes from a different buffer never merge
	ins, err := d.InsertRaw(d.Root(), 1, []byte{1})
	require.NoError(t, err)
	_, err = d.Merge(merged, ins)
	require.ErrorAs(t, err, &se)
}

func TestFindAndWalk(t *testing.T) {
	data := seq(32)
	binary.LittleEndian.PutUint32(data[16:], 4)
	d := newDoc(t, data)
	_, err := d.SplitAt(0, blobOf(4))
	require.NoError(t, err)
	_, err = d.SplitAt(16, refIn(d))
	require.NoError(t, err)
	_, err = d.SplitAt(24, blobOf(8))
	require.NoError(t, err)

	require.Len(t, Find[*blob](d), 2)
	refs := Find[*ref](d)
	require.Len(t, refs, 1)
	require.Equal(t, "loc_4", refs[0].Target.Name())

	var walked []Kind
	require.NoError(t, d.Walk(func(k Key, kind Kind) error {
		walked = append(walked, kind)
		return nil
	}))
	require.Equal(t, []Kind{KindComposite, KindLeaf, KindRaw, KindLeaf, KindRaw, KindLeaf, KindEof}, walked)
}

func TestInspect(t *testing.T) {
	data := seq(16)
	binary.LittleEndian.PutUint32(data, 8)
	d := newDoc(t, data)
	_, err := d.SplitAt(0, refIn(d))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, d.Inspect(&out))
	s := out.String()
	require.Contains(t, s, "0x000000 composite size=0x10")
	require.Contains(t, s, "0x000000 test.ref size=0x4")
	require.Contains(t, s, "ref(loc_8)")
	require.Contains(t, s, "loc_8: 0x000008")
	require.Contains(t, s, "0x000010 eof size=0x0")
}

func TestNewFromSource(t *testing.T) {
	buf := NewBuffer(seq(32))
	src := NewSource(buf)
	sub, err := src.Sub(8, 16)
	require.NoError(t, err)

	d, err := NewFromSource(sub)
	require.NoError(t, err)
	require.Equal(t, int64(16), d.Size())
	require.Equal(t, int32(2), buf.Refs())
	raw, ok := d.RawBytes(d.Children(d.Root())[0])
	require.True(t, ok)
	require.Equal(t, seq(32)[8:24], raw)

	require.NoError(t, d.Close())
	require.Equal(t, int32(1), buf.Refs())
}

func TestClose(t *testing.T) {
	buf := NewBuffer(seq(8))
	d := New(buf)
	k, err := d.SplitAt(0, blobOf(2))
	require.NoError(t, err)
	leaf, _ := d.Leaf(k)
	require.Equal(t, int32(2), buf.Refs())

	require.NoError(t, d.Close())
	require.True(t, leaf.(*blob).closed)
	require.Equal(t, int32(1), buf.Refs())
	// closing twice is harmless
	require.NoError(t, d.Close())
	require.Equal(t, int32(1), buf.Refs())

	_, err = d.Dump()
	require.ErrorIs(t, err, ErrClosed)
	_, err = d.SplitAt(4, blobOf(1))
	require.ErrorIs(t, err, ErrClosed)
}
