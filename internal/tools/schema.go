package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Param describes one input field of a tool.
type Param struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Items       string   `json:"items,omitempty" yaml:"items,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool     `json:"required" yaml:"required"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinLength   *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Default     string   `json:"default,omitempty" yaml:"default,omitempty"`
}

// Schema is the declarative input contract of a tool. It is derived from the
// input struct's tags:
//
//	json:"name"             parameter name
//	validate:"required,..." presence, oneof=, min=, max=
//	default:"value"         applied to fields the input leaves out
//	desc:"text"             human description
type Schema struct {
	Params []Param `json:"params" yaml:"params"`
}

// Param returns the parameter with the given name.
func (s Schema) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Required lists the names of required parameters in declaration order.
func (s Schema) Required() []string {
	var out []string
	for _, p := range s.Params {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// fieldDefault is a parsed `default` tag ready to be assigned.
type fieldDefault struct {
	name  string
	index []int
	value reflect.Value
}

// buildSchema reflects over the input struct type. It panics on malformed
// tags: they are programming errors in a tool definition.
func buildSchema(t reflect.Type) (Schema, []fieldDefault) {
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("tools: input type %s must be a struct", t))
	}

	var (
		schema   Schema
		defaults []fieldDefault
	)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonName(f)
		if name == "" {
			continue
		}

		p := Param{
			Name:        name,
			Type:        typeName(f.Type),
			Description: f.Tag.Get("desc"),
		}
		if f.Type.Kind() == reflect.Slice {
			p.Items = typeName(f.Type.Elem())
		}
		applyRules(&p, f.Type, f.Tag.Get("validate"))

		if def, ok := f.Tag.Lookup("default"); ok {
			v, err := parseDefault(f.Type, def)
			if err != nil {
				panic(fmt.Sprintf("tools: bad default for %s.%s: %v", t.Name(), f.Name, err))
			}
			p.Default = def
			defaults = append(defaults, fieldDefault{name: name, index: f.Index, value: v})
		}

		schema.Params = append(schema.Params, p)
	}
	return schema, defaults
}

// applyDefaults assigns parsed defaults to the fields of *v that missing
// reports as left out.
func applyDefaults(v reflect.Value, defaults []fieldDefault, missing func(name string, f reflect.Value) bool) {
	for _, d := range defaults {
		f := v.FieldByIndex(d.index)
		if missing(d.name, f) {
			f.Set(d.value)
		}
	}
}

func zeroField(_ string, f reflect.Value) bool { return f.IsZero() }

// absentKey reports fields whose key does not appear in keys. Keys match
// case-insensitively, as encoding/json matches them to fields.
func absentKey(keys map[string]json.RawMessage) func(string, reflect.Value) bool {
	return func(name string, _ reflect.Value) bool {
		for k := range keys {
			if strings.EqualFold(k, name) {
				return false
			}
		}
		return true
	}
}

func applyRules(p *Param, t reflect.Type, tag string) {
	if tag == "" {
		return
	}
	for _, rule := range strings.Split(tag, ",") {
		key, val, _ := strings.Cut(rule, "=")
		switch key {
		case "dive":
			// Remaining rules apply to elements.
			return
		case "required":
			p.Required = true
		case "oneof":
			p.Enum = strings.Fields(val)
		case "min", "max":
			n, err := strconv.ParseFloat(val, 64)
			if err != nil {
				panic(fmt.Sprintf("tools: bad %s bound %q on %s", key, val, p.Name))
			}
			setBound(p, t, key, n)
		}
	}
}

func setBound(p *Param, t reflect.Type, key string, n float64) {
	switch t.Kind() {
	case reflect.String, reflect.Slice, reflect.Map:
		length := int(n)
		if key == "min" {
			p.MinLength = &length
		} else {
			p.MaxLength = &length
		}
	default:
		if key == "min" {
			p.Minimum = &n
		} else {
			p.Maximum = &n
		}
	}
}

func parseDefault(t reflect.Type, s string) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return v, err
		}
		v.SetBool(b)
	default:
		return v, fmt.Errorf("unsupported kind %s", t.Kind())
	}
	return v, nil
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
