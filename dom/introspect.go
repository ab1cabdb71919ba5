// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Field describes one introspectable field of a leaf.  The name comes from
// a `bindoc:"name"` tag, or the lower-cased Go field name; `bindoc:"-"`
// hides a field and `bindoc:"name,readonly"` rejects SetField.
type Field struct {
	Name     string
	Type     string
	Settable bool
}

// textField is implemented by fixed-width string fields.
type textField interface {
	String() string
	Set(string) error
}

var (
	labelType     = reflect.TypeOf((*Label)(nil))
	textFieldType = reflect.TypeOf((*textField)(nil)).Elem()
)

type fieldInfo struct {
	Field
	index []int
	text  bool
}

var fieldCache sync.Map

func leafFields(typ reflect.Type) ([]fieldInfo, error) {
	if v, ok := fieldCache.Load(typ); ok {
		return v.([]fieldInfo), nil
	}
	if typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%v is not a pointer to a struct", typ)
	}
	st := typ.Elem()
	var fields []fieldInfo
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := strings.ToLower(sf.Name)
		readonly := false
		if tag, ok := sf.Tag.Lookup("bindoc"); ok {
			if tag == "-" {
				continue
			}
			tagName, opts, _ := strings.Cut(tag, ",")
			if tagName != "" {
				name = tagName
			}
			for _, opt := range strings.Split(opts, ",") {
				switch opt {
				case "":
				case "readonly":
					readonly = true
				default:
					return nil, fmt.Errorf("%v.%s: unknown bindoc tag option %q", typ, sf.Name, opt)
				}
			}
		}
		fi := fieldInfo{Field: Field{Name: name}, index: sf.Index}
		fi.Type, fi.Settable, fi.text = describe(sf.Type)
		if readonly {
			fi.Settable = false
		}
		fields = append(fields, fi)
	}
	actual, _ := fieldCache.LoadOrStore(typ, fields)
	return actual.([]fieldInfo), nil
}

func describe(t reflect.Type) (name string, settable, text bool) {
	if t == labelType {
		return "label", true, false
	}
	if reflect.PointerTo(t).Implements(textFieldType) {
		return "text", true, true
	}
	switch t.Kind() {
	case reflect.Uint8:
		return "u8", true, false
	case reflect.Uint16:
		return "u16", true, false
	case reflect.Uint32:
		return "u32", true, false
	case reflect.Uint64:
		return "u64", true, false
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return fmt.Sprintf("i%d", t.Bits()), true, false
	case reflect.Float32:
		return "f32", true, false
	case reflect.Float64:
		return "f64", true, false
	case reflect.Bool:
		return "bool", true, false
	case reflect.String:
		return "string", true, false
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "bytes", false, false
		}
		return "list", false, false
	case reflect.Array:
		return "array", false, false
	default:
		return t.String(), false, false
	}
}

// Fields lists the introspectable fields of leaf.
func Fields(leaf Leaf) ([]Field, error) {
	infos, err := leafFields(reflect.TypeOf(leaf))
	if err != nil {
		return nil, err
	}
	out := make([]Field, len(infos))
	for i, fi := range infos {
		out[i] = fi.Field
	}
	return out, nil
}

func lookupField(leaf Leaf, name string) (fieldInfo, reflect.Value, error) {
	infos, err := leafFields(reflect.TypeOf(leaf))
	if err != nil {
		return fieldInfo{}, reflect.Value{}, err
	}
	for _, fi := range infos {
		if fi.Name == name {
			return fi, reflect.ValueOf(leaf).Elem().FieldByIndex(fi.index), nil
		}
	}
	return fieldInfo{}, reflect.Value{}, fmt.Errorf("%s has no field %q", leaf.TypeName(), name)
}

// GetField returns the value of a field.  Text fields are returned as
// strings.
func GetField(leaf Leaf, name string) (any, error) {
	fi, v, err := lookupField(leaf, name)
	if err != nil {
		return nil, err
	}
	if fi.text {
		return v.Addr().Interface().(textField).String(), nil
	}
	return v.Interface(), nil
}

// SetField assigns value to a field, converting between numeric kinds when
// the value fits.
func SetField(leaf Leaf, name string, value any) error {
	fi, v, err := lookupField(leaf, name)
	if err != nil {
		return err
	}
	if !fi.Settable {
		return fmt.Errorf("%s.%s (%s) is read-only", leaf.TypeName(), name, fi.Type)
	}
	if fi.text {
		s, ok := value.(string)
		if !ok {
			if st, isStringer := value.(fmt.Stringer); isStringer {
				s, ok = st.String(), true
			}
		}
		if !ok {
			return fmt.Errorf("%s.%s: want string, got %T", leaf.TypeName(), name, value)
		}
		return v.Addr().Interface().(textField).Set(s)
	}

	in := reflect.ValueOf(value)
	if !in.IsValid() {
		if v.Kind() == reflect.Pointer {
			v.SetZero()
			return nil
		}
		return fmt.Errorf("%s.%s: cannot set nil", leaf.TypeName(), name)
	}
	switch v.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var u uint64
		switch in.Kind() {
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
			u = in.Uint()
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			if in.Int() < 0 {
				return fmt.Errorf("%s.%s: %d is negative", leaf.TypeName(), name, in.Int())
			}
			u = uint64(in.Int())
		default:
			return fmt.Errorf("%s.%s: want integer, got %T", leaf.TypeName(), name, value)
		}
		if v.OverflowUint(u) {
			return fmt.Errorf("%s.%s: %d overflows %s", leaf.TypeName(), name, u, fi.Type)
		}
		v.SetUint(u)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		var i int64
		switch in.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			i = in.Int()
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
			i = int64(in.Uint())
		default:
			return fmt.Errorf("%s.%s: want integer, got %T", leaf.TypeName(), name, value)
		}
		if v.OverflowInt(i) {
			return fmt.Errorf("%s.%s: %d overflows %s", leaf.TypeName(), name, i, fi.Type)
		}
		v.SetInt(i)
	case reflect.Float32, reflect.Float64:
		if !in.CanFloat() {
			return fmt.Errorf("%s.%s: want float, got %T", leaf.TypeName(), name, value)
		}
		v.SetFloat(in.Float())
	default:
		if !in.Type().AssignableTo(v.Type()) {
			return fmt.Errorf("%s.%s: want %s, got %T", leaf.TypeName(), name, v.Type(), value)
		}
		v.Set(in)
	}
	return nil
}
