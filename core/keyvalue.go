package core

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidKeyValue = errors.New("invalid key=value argument")

// KeyValue is a single `key=value` command line argument.
type KeyValue struct {
	Key   string
	Value string
}

func (kv KeyValue) String() string {
	return kv.Key + "=" + kv.Value
}

// ParseKeyValue splits arg on its first '='. Values may themselves contain '='.
func ParseKeyValue(arg string) (KeyValue, error) {
	key, value, found := strings.Cut(arg, "=")
	if !found {
		return KeyValue{}, fmt.Errorf("%w: %q has no '='", ErrInvalidKeyValue, arg)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return KeyValue{}, fmt.Errorf("%w: %q has an empty key", ErrInvalidKeyValue, arg)
	}
	return KeyValue{Key: key, Value: value}, nil
}

func ParseKeyValues(args []string) ([]KeyValue, error) {
	kvs := make([]KeyValue, 0, len(args))
	for _, arg := range args {
		kv, err := ParseKeyValue(arg)
		if err != nil {
			return nil, err
		}
		kvs = append(kvs, kv)
	}
	return kvs, nil
}

// KeyValueMap folds kvs into a field map; later keys win.
func KeyValueMap(kvs []KeyValue) map[string]any {
	fields := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		fields[kv.Key] = kv.Value
	}
	return fields
}
