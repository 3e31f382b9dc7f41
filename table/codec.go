// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package table

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"

	"github.com/grailbio/base/errors"
	"github.com/spaolacci/murmur3"
)

// GobEncode implements a custom gob encoder for tables, so that
// tables can be shipped to worker processes. Column element types
// that are not builtin must be registered with gob.Register.
func (t *Table) GobEncode() ([]byte, error) {
	var b bytes.Buffer
	enc := gob.NewEncoder(&b)
	if err := enc.Encode(t.names); err != nil {
		return nil, err
	}
	for _, col := range t.cols {
		v := col.Interface()
		if err := enc.Encode(&v); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// GobDecode implements a custom gob decoder for tables.
func (t *Table) GobDecode(p []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(p))
	var names []string
	if err := dec.Decode(&names); err != nil {
		return err
	}
	cols := make([]Column, len(names))
	for i, name := range names {
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return err
		}
		val := reflect.ValueOf(v)
		if !val.IsValid() || val.Kind() != reflect.Slice {
			return errors.E(errors.Invalid, fmt.Sprintf("decode column %q: not a slice", name))
		}
		if i > 0 && val.Len() != cols[0].Len() {
			return errors.E(errors.Integrity, (&ShapeMismatchError{Column: name, Len: val.Len(), Want: cols[0].Len()}).Error())
		}
		cols[i] = Column(val)
	}
	t.names, t.cols = names, cols
	return nil
}

// Checksum returns a 32-bit murmur3 fingerprint of the table's
// contents. Column names are hashed in sorted order together with
// each column's gob encoding, so two tables with equal columns have
// equal checksums regardless of how they were constructed.
func (t *Table) Checksum() (uint32, error) {
	h := murmur3.New32()
	for i, name := range t.Names() {
		if _, err := h.Write([]byte(name)); err != nil {
			return 0, err
		}
		if err := gob.NewEncoder(h).Encode(t.cols[i].Interface()); err != nil {
			return 0, errors.E(errors.Invalid, fmt.Sprintf("checksum column %q", name), err)
		}
	}
	return h.Sum32(), nil
}
