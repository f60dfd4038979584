package repository

import (
	"encoding/json"

	"github.com/notifyhub/pushsched/internal/domain"
)

func marshalFilter(f *domain.Filter) ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func unmarshalFilter(b []byte) (*domain.Filter, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var f domain.Filter
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
