package config

import "reflect"

// Merge overlays configuration layers ordered from strongest to weakest.
// A field set in a stronger layer wins; zero values and nil slices fall
// through to the next layer. Registry lists are taken whole, never
// concatenated.
func Merge(layers ...Config) Config {
	if len(layers) == 0 {
		return Config{}
	}
	merged := reflect.ValueOf(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = overlay(reflect.ValueOf(layers[i]), merged)
	}
	return merged.Interface().(Config)
}

func overlay(strong, weak reflect.Value) reflect.Value {
	switch strong.Kind() {
	case reflect.Struct:
		out := reflect.New(strong.Type()).Elem()
		for i := range strong.NumField() {
			if !out.Field(i).CanSet() {
				continue
			}
			out.Field(i).Set(overlay(strong.Field(i), weak.Field(i)))
		}
		return out
	case reflect.Slice:
		if strong.IsNil() {
			return cloneSlice(weak)
		}
		return cloneSlice(strong)
	default:
		if strong.IsZero() {
			return weak
		}
		return strong
	}
}

func cloneSlice(v reflect.Value) reflect.Value {
	if v.IsNil() {
		return v
	}
	out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	reflect.Copy(out, v)
	return out
}
