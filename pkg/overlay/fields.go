package overlay

import (
	"reflect"
	"strings"
	"sync"
)

type structField struct {
	index int
	name  string
}

var fieldCache sync.Map // reflect.Type -> []structField

// plainFields lists the exported fields of a plain struct, named the way
// encoding/json names them.
func plainFields(t reflect.Type) []structField {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]structField)
	}
	fields := make([]structField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields = append(fields, structField{index: i, name: name})
	}
	cached, _ := fieldCache.LoadOrStore(t, fields)
	return cached.([]structField)
}
