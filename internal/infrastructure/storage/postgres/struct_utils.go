package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns returns the column names declared by "db" tags on T,
// descending into embedded structs.
//
// Usage:
//
//	columns := ExtractDBColumns[person.Person]()
//	// Returns: ["id", "name", "age", "salary"]
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero))
}

func columnsOf(t reflect.Type) []string {
	if t == nil {
		return nil
	}
	st := t
	if st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	meta := metadataOf(t)
	cols := make([]string, 0, len(meta.fields))
	for _, fi := range meta.fields {
		if fi.embedded {
			cols = append(cols, columnsOf(st.Field(fi.index).Type)...)
			continue
		}
		cols = append(cols, fi.column)
	}
	return cols
}

// fieldInfo describes one tagged or embedded field, in declaration order.
type fieldInfo struct {
	index    int
	column   string
	embedded bool
}

type typeMetadata struct {
	fields []fieldInfo
}

// typeCache maps reflect.Type (always a pointer-to-struct key) to *typeMetadata.
var typeCache sync.Map

// metadataOf returns cached field metadata; the key is normalized to a
// pointer type so T and *T share one entry.
func metadataOf(t reflect.Type) *typeMetadata {
	if t.Kind() != reflect.Ptr {
		t = reflect.PointerTo(t)
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	st := t.Elem()
	if st.Kind() == reflect.Struct {
		for i := 0; i < st.NumField(); i++ {
			field := st.Field(i)
			if field.Anonymous {
				meta.fields = append(meta.fields, fieldInfo{index: i, embedded: true})
				continue
			}
			tag := field.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			meta.fields = append(meta.fields, fieldInfo{index: i, column: tag})
		}
	}

	actual, _ := typeCache.LoadOrStore(t, meta)
	return actual.(*typeMetadata)
}

// StructToMap converts a struct (or pointer to struct) to a column → value
// map using "db" tags. Non-struct values yield nil.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	res := make(map[string]any)
	collect(rv, res)
	return res
}

func collect(rv reflect.Value, res map[string]any) {
	for _, fi := range metadataOf(rv.Type()).fields {
		fv := rv.Field(fi.index)
		if !fi.embedded {
			res[fi.column] = fv.Interface()
			continue
		}
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Struct {
			collect(fv, res)
		}
	}
}
