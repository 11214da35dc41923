// Package checkers provides quicktest checkers for JSON output.
package checkers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	qt "github.com/frankban/quicktest"
	"github.com/yalp/jsonpath"
)

// JSONPathEquals returns a checker that decodes the obtained JSON (a string
// or []byte), reads the value at path and compares it to the wanted value
// with reflect.DeepEqual. Numbers decode as float64.
//
//	c.Assert(out, checkers.JSONPathEquals("$[0].name"), "www")
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathChecker{path: path}
}

type jsonPathChecker struct {
	path string
}

func (*jsonPathChecker) ArgNames() []string { return []string{"got", "want"} }

func (c *jsonPathChecker) Check(got any, args []any, note func(key string, value any)) error {
	var data []byte
	switch v := got.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return qt.BadCheckf("got must be a string or []byte, not %T", got)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	value, err := jsonpath.Read(doc, c.path)
	if err != nil {
		note("path", c.path)
		return fmt.Errorf("cannot read path: %w", err)
	}
	if !reflect.DeepEqual(value, args[0]) {
		note("path", c.path)
		note("value at path", value)
		return errors.New("values are not equal")
	}
	return nil
}
