package cdfio

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/swxlab/swxkit/pkg/types"
)

// Attribute values survive the round trip with their Go types intact, so
// every value is stored as a kind tag plus the JSON of the concrete value.
const (
	kindNil     = "nil"
	kindString  = "str"
	kindInt     = "int"
	kindFloat   = "float"
	kindBool    = "bool"
	kindTime    = "time"
	kindStrings = "strs"
	kindInts    = "ints"
	kindFloats  = "floats"
	kindTimes   = "times"
	kindJSON    = "json"
)

type attrJSON struct {
	Kind  string          `json:"k"`
	Value json.RawMessage `json:"v,omitempty"`
}

type attrEntry struct {
	Name  string   `json:"name"`
	Value attrJSON `json:"value"`
}

type arrayJSON struct {
	Kind    string    `json:"kind"`
	Shape   []int     `json:"shape"`
	Ints    []int64   `json:"ints,omitempty"`
	Floats  []float64 `json:"floats,omitempty"`
	Strings []string  `json:"strings,omitempty"`
	Times   []string  `json:"times,omitempty"`
}

type epochJSON struct {
	Name  string      `json:"name"`
	Times []string    `json:"times"`
	Meta  []attrEntry `json:"meta"`
}

type variableJSON struct {
	Name          string      `json:"name"`
	Units         string      `json:"units,omitempty"`
	RecordVarying bool        `json:"record_varying"`
	Meta          []attrEntry `json:"meta"`
	Data          arrayJSON   `json:"data"`
	WCS           *types.WCS  `json:"wcs,omitempty"`
}

func globalSection(meta *types.Metadata) ([]byte, error) {
	entries, err := encodeMeta(meta)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entries)
}

func decodeGlobalSection(payload []byte) (*types.Metadata, error) {
	var entries []attrEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, err
	}
	return decodeMeta(entries)
}

func epochSection(f *File) ([]byte, error) {
	meta, err := encodeMeta(f.EpochMeta)
	if err != nil {
		return nil, err
	}
	section := epochJSON{Name: f.EpochName, Meta: meta}
	for _, t := range f.Epoch {
		section.Times = append(section.Times, t.Format(time.RFC3339Nano))
	}
	return json.Marshal(section)
}

func decodeEpochSection(payload []byte, f *File) error {
	var section epochJSON
	if err := json.Unmarshal(payload, &section); err != nil {
		return err
	}
	f.EpochName = section.Name
	for _, s := range section.Times {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		f.Epoch = append(f.Epoch, t)
	}
	meta, err := decodeMeta(section.Meta)
	if err != nil {
		return err
	}
	f.EpochMeta = meta
	return nil
}

func variableSection(v *Variable) ([]byte, error) {
	meta, err := encodeMeta(v.Meta)
	if err != nil {
		return nil, err
	}
	section := variableJSON{
		Name:          v.Name,
		Units:         v.Units,
		RecordVarying: v.RecordVarying,
		Meta:          meta,
		Data:          encodeArray(v.Data),
		WCS:           v.WCS,
	}
	return json.Marshal(section)
}

func decodeVariableSection(payload []byte) (Variable, error) {
	var section variableJSON
	if err := json.Unmarshal(payload, &section); err != nil {
		return Variable{}, err
	}
	meta, err := decodeMeta(section.Meta)
	if err != nil {
		return Variable{}, err
	}
	data, err := decodeArray(section.Data)
	if err != nil {
		return Variable{}, err
	}
	return Variable{
		Name:          section.Name,
		Units:         section.Units,
		RecordVarying: section.RecordVarying,
		Meta:          meta,
		Data:          data,
		WCS:           section.WCS,
	}, nil
}

func encodeMeta(meta *types.Metadata) ([]attrEntry, error) {
	if meta == nil {
		return nil, nil
	}
	entries := make([]attrEntry, 0, meta.Len())
	for _, name := range meta.Keys() {
		value, err := encodeAttr(meta.Value(name))
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		entries = append(entries, attrEntry{Name: name, Value: value})
	}
	return entries, nil
}

func decodeMeta(entries []attrEntry) (*types.Metadata, error) {
	meta := types.NewMetadata()
	for _, entry := range entries {
		value, err := decodeAttr(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", entry.Name, err)
		}
		meta.Set(entry.Name, value)
	}
	return meta, nil
}

func encodeAttr(value any) (attrJSON, error) {
	tag := func(kind string, v any) (attrJSON, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return attrJSON{}, err
		}
		return attrJSON{Kind: kind, Value: raw}, nil
	}

	switch v := value.(type) {
	case nil:
		return attrJSON{Kind: kindNil}, nil
	case string:
		return tag(kindString, v)
	case bool:
		return tag(kindBool, v)
	case int:
		return tag(kindInt, int64(v))
	case int8:
		return tag(kindInt, int64(v))
	case int16:
		return tag(kindInt, int64(v))
	case int32:
		return tag(kindInt, int64(v))
	case int64:
		return tag(kindInt, v)
	case float32:
		return tag(kindFloat, float64(v))
	case float64:
		return tag(kindFloat, v)
	case time.Time:
		return tag(kindTime, v.Format(time.RFC3339Nano))
	case []string:
		return tag(kindStrings, v)
	case []int64:
		return tag(kindInts, v)
	case []float64:
		return tag(kindFloats, v)
	case []time.Time:
		formatted := make([]string, len(v))
		for i, t := range v {
			formatted[i] = t.Format(time.RFC3339Nano)
		}
		return tag(kindTimes, formatted)
	}
	// Unrecognized types keep their JSON shape but not their Go type.
	return tag(kindJSON, value)
}

func decodeAttr(attr attrJSON) (any, error) {
	switch attr.Kind {
	case kindNil:
		return nil, nil
	case kindString:
		var v string
		return v, json.Unmarshal(attr.Value, &v)
	case kindBool:
		var v bool
		return v, json.Unmarshal(attr.Value, &v)
	case kindInt:
		var v int64
		return v, json.Unmarshal(attr.Value, &v)
	case kindFloat:
		var v float64
		return v, json.Unmarshal(attr.Value, &v)
	case kindTime:
		var s string
		if err := json.Unmarshal(attr.Value, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	case kindStrings:
		var v []string
		return v, json.Unmarshal(attr.Value, &v)
	case kindInts:
		var v []int64
		return v, json.Unmarshal(attr.Value, &v)
	case kindFloats:
		var v []float64
		return v, json.Unmarshal(attr.Value, &v)
	case kindTimes:
		var formatted []string
		if err := json.Unmarshal(attr.Value, &formatted); err != nil {
			return nil, err
		}
		out := make([]time.Time, len(formatted))
		for i, s := range formatted {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	case kindJSON:
		var v any
		return v, json.Unmarshal(attr.Value, &v)
	}
	return nil, fmt.Errorf("unknown attribute kind %q", attr.Kind)
}

func encodeArray(a types.Array) arrayJSON {
	out := arrayJSON{Shape: a.Shape()}
	switch a.Kind() {
	case types.KindInt:
		out.Kind = "int"
		out.Ints = a.IntSlice()
	case types.KindFloat:
		out.Kind = "float"
		out.Floats = a.FloatSlice()
	case types.KindString:
		out.Kind = "string"
		out.Strings = a.StringSlice()
	case types.KindTime:
		out.Kind = "time"
		for _, t := range a.TimeSlice() {
			out.Times = append(out.Times, t.Format(time.RFC3339Nano))
		}
	}
	return out
}

func decodeArray(a arrayJSON) (types.Array, error) {
	switch a.Kind {
	case "int":
		if a.Ints == nil {
			a.Ints = []int64{}
		}
		return types.IntsShaped(a.Shape, a.Ints), nil
	case "float":
		if a.Floats == nil {
			a.Floats = []float64{}
		}
		return types.FloatsShaped(a.Shape, a.Floats), nil
	case "string":
		return types.Strings(a.Strings...), nil
	case "time":
		parsed := make([]time.Time, len(a.Times))
		for i, s := range a.Times {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return types.Array{}, err
			}
			parsed[i] = t
		}
		return types.Times(parsed...), nil
	}
	return types.Array{}, fmt.Errorf("unknown array kind %q", a.Kind)
}
