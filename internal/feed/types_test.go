package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRef_NormalizesDomain(t *testing.T) {
	decomposed := "café.example"
	r := NewRef(decomposed, "1")
	assert.Equal(t, "café.example", r.Domain)
	assert.Equal(t, "café.example/1", r.String())
	assert.False(t, r.IsZero())
	assert.True(t, Ref{}.IsZero())
}

func TestRawEntity_Validate(t *testing.T) {
	ok := RawEntity{Ref: NewRef("d", "1"), Kind: KindPost}
	require.NoError(t, ok.Validate())

	tests := []struct {
		name string
		e    RawEntity
		want string
	}{
		{"missing domain", RawEntity{Ref: Ref{ID: "1"}}, "missing domain"},
		{"missing id", RawEntity{Ref: Ref{Domain: "d"}}, "missing id"},
		{"bad embedded", RawEntity{Ref: NewRef("d", "r"), Embedded: []RawEntity{{Ref: Ref{Domain: "d"}}}}, "embedded[0] of d/r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.e.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidEntity))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestItemFromEntity_Copies(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fetched := created.Add(time.Hour)
	e := RawEntity{
		Ref:       NewRef("d", "r"),
		Kind:      KindReblog,
		CreatedAt: created,
		Payload:   Payload{"text": "hi"},
		Refs:      []Ref{NewRef("d", "p")},
	}

	item := ItemFromEntity(e, fetched)
	assert.Equal(t, fetched, item.LastUpdated)
	assert.Equal(t, created, item.CreatedAt)
	assert.Equal(t, KindReblog, item.Kind)

	e.Payload["text"] = "changed"
	e.Refs[0].ID = "q"
	assert.Equal(t, "hi", item.Payload["text"])
	assert.Equal(t, "p", item.Refs[0].ID)
}

func TestPayload_CloneNil(t *testing.T) {
	var p Payload
	assert.Nil(t, p.Clone())
}

func TestParamsAndPage(t *testing.T) {
	assert.Equal(t, "example.social:home", Params{Domain: "example.social", Timeline: "home"}.String())

	page := Page{Items: []RawEntity{{Ref: NewRef("d", "a")}, {Ref: NewRef("d", "b")}}}
	assert.Equal(t, []string{"a", "b"}, page.IDs())
	assert.Empty(t, Page{}.IDs())
}
