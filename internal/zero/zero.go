// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package zero clears destinations so failed reads never leave partial data behind.
package zero

import "reflect"

func Bytes(b []byte) {
	for i := 0; i < len(b); i++ {
		b[i] = 0
	}
}

// Value sets the value pointed to by ptr to its zero value.  Non-pointer
// and nil arguments are ignored.
func Value(ptr any) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	v.Elem().SetZero()
}
