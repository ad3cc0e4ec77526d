package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClone(t *testing.T) {
	m := Metadata{"a": "1", "b": "2"}
	c := m.Clone()

	assert.True(t, m.Equal(c))

	c["a"] = "changed"
	assert.Equal(t, "1", m["a"])

	assert.Nil(t, Metadata(nil).Clone())
}

func TestFilterMatches(t *testing.T) {
	m := Metadata{"category": "tech", "lang": "en"}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"Empty", Filter{}, true},
		{"Nil", nil, true},
		{"SingleMatch", Filter{"category": "tech"}, true},
		{"AllMatch", Filter{"category": "tech", "lang": "en"}, true},
		{"ValueMismatch", Filter{"category": "science"}, false},
		{"MissingKey", Filter{"region": "eu"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(m))
		})
	}
}

func TestSchemaValidate(t *testing.T) {
	s := Schema{
		"count":  FieldTypeInt,
		"score":  FieldTypeFloat,
		"active": FieldTypeBool,
		"label":  FieldTypeString,
	}

	tests := []struct {
		name    string
		m       Metadata
		wantErr bool
	}{
		{"AllValid", Metadata{"count": "3", "score": "0.5", "active": "true", "label": "x"}, false},
		{"UnrecognizedKeyPasses", Metadata{"anything": "goes"}, false},
		{"BadInt", Metadata{"count": "three"}, true},
		{"BadFloat", Metadata{"score": "high"}, true},
		{"BadBool", Metadata{"active": "maybe"}, true},
		{"Empty", Metadata{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.m)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("NilSchema", func(t *testing.T) {
		assert.NoError(t, Schema(nil).Validate(Metadata{"count": "x"}))
	})
}
