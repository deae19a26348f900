package neo4jgraphql

import (
	"bytes"
	"encoding/json"
)

// object is a response object which serializes its fields in selection order.
type object struct {
	keys   []string
	values []any
}

func newObject(size int) *object {
	return &object{
		keys:   make([]string, 0, size),
		values: make([]any, 0, size),
	}
}

func (o *object) set(key string, value any) {
	o.keys = append(o.keys, key)
	o.values = append(o.values, value)
}

// MarshalJSON writes the fields in the order they were set.
func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
