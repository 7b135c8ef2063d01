package orchestrator

import (
	"encoding/json"
	"os"
)

func marshalAny(v any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalAny(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}

func userHomeDir() (string, error) {
	return os.UserHomeDir()
}
