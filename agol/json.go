package agol

import (
	"github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// UseFastJSON orb/geojson 的编解码改用 goccy/go-json，进程启动时调用一次
func UseFastJSON() {
	geojson.CustomJSONMarshaler = jsonCodec{}
	geojson.CustomJSONUnmarshaler = jsonCodec{}
}
