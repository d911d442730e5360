package log

import "time"

// Field is a single structured key/value pair attached to an entry.
type Field struct {
	Key   string
	Value interface{}
}

func Str(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field     { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Duration records d in its human-readable form ("1.5s").
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: d.String()}
}

// Err attaches an error under the "error" key. A nil error yields an empty
// string so formatters never see a typed nil.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component tags the entry with the emitting component.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }
