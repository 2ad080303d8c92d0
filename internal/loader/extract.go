// SPDX-License-Identifier: MPL-2.0

package loader

import "reflect"

// DefaultExporter is implemented by Go modules that carry a default export.
type DefaultExporter interface {
	DefaultExport() any
}

// Extract returns the export of module: its "default" member when present
// and truthy, otherwise module itself. A module that is not truthy fails
// with *NoExportFoundError.
func Extract(module any, exposedPath string) (any, error) {
	switch m := module.(type) {
	case map[string]any:
		if d, ok := m["default"]; ok && truthy(d) {
			return d, nil
		}
	case DefaultExporter:
		if d := m.DefaultExport(); truthy(d) {
			return d, nil
		}
	}
	if !truthy(module) {
		return nil, &NoExportFoundError{ExposedPath: exposedPath}
	}
	return module, nil
}

// truthy follows the script runtime: only nil and false are false. Typed nil
// pointers, maps, slices and funcs count as nil.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return !rv.IsNil()
	default:
		return true
	}
}
