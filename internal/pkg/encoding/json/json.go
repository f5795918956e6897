// Package json wraps the JSON codec used for all persisted structured data,
// output is indented so the files are human-readable and diffable.
package json

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

func Encode(v any, pretty bool) ([]byte, error) {
	var data []byte
	var err error
	if pretty {
		data, err = codec.MarshalIndent(v, "", "  ")
	} else {
		data, err = codec.Marshal(v)
	}
	if err != nil {
		return nil, errors.PrefixError(err, "cannot encode JSON")
	}
	if pretty {
		data = append(data, '\n')
	}
	return data, nil
}

func EncodeString(v any, pretty bool) (string, error) {
	data, err := Encode(v, pretty)
	return string(data), err
}

func MustEncode(v any, pretty bool) []byte {
	data, err := Encode(v, pretty)
	if err != nil {
		panic(err)
	}
	return data
}

func MustEncodeString(v any, pretty bool) string {
	data, err := EncodeString(v, pretty)
	if err != nil {
		panic(err)
	}
	return data
}

func Decode(data []byte, target any) error {
	if err := codec.Unmarshal(data, target); err != nil {
		return errors.PrefixError(err, "cannot decode JSON")
	}
	return nil
}

func DecodeString(data string, target any) error {
	return Decode([]byte(data), target)
}

func MustDecode(data []byte, target any) {
	if err := Decode(data, target); err != nil {
		panic(err)
	}
}
