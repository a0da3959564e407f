package services

import (
	"encoding/json"
)

// Serializer converts request and response bodies
type Serializer interface {
	// Format names the wire format, e.g. "json"
	Format() string
	Serialize(v interface{}) ([]byte, error)
	Deserialize(data []byte, v interface{}) error
}

// JSONSerializer is the default Serializer
type JSONSerializer struct{}

func (JSONSerializer) Format() string { return "json" }

func (JSONSerializer) Serialize(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Deserialize(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// dataEnvelope is the legacy {"data": ...} wrapping
type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type wrappedData struct {
	Data interface{} `json:"data"`
}

// errorEnvelope is the {"error": ...} body of a failed call
type errorEnvelope struct {
	Error *RequestError `json:"error"`
}
