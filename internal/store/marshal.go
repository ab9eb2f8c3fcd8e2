package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mastodon/mastodon-ios-sub005/internal/canonical"
	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

// payloadHashDomain separates payload hashes from other canonical hashes.
const payloadHashDomain = "feedsync/payload/v1"

// marshalPayload converts a payload to canonical JSON TEXT and its hash.
func marshalPayload(p feed.Payload) (data, hash string, err error) {
	if p == nil {
		p = feed.Payload{}
	}
	b, err := canonical.Marshal(map[string]any(p))
	if err != nil {
		return "", "", fmt.Errorf("marshal payload: %w", err)
	}
	h, err := canonical.Hash(payloadHashDomain, map[string]any(p))
	if err != nil {
		return "", "", fmt.Errorf("hash payload: %w", err)
	}
	return string(b), h, nil
}

// unmarshalPayload parses canonical JSON TEXT into a payload.
// Numbers come back as int64 so round-trips preserve integer types.
func unmarshalPayload(data string) (feed.Payload, error) {
	if data == "" || data == "{}" {
		return feed.Payload{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	out, err := normalizeNumbers(m)
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return feed.Payload(out.(map[string]any)), nil
}

func normalizeNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q", val)
		}
		return n, nil
	case []any:
		for i, elem := range val {
			n, err := normalizeNumbers(elem)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	case map[string]any:
		for k, elem := range val {
			n, err := normalizeNumbers(elem)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	default:
		return v, nil
	}
}

func marshalRefs(refs []feed.Ref) (string, error) {
	list := make([]any, len(refs))
	for i, r := range refs {
		list[i] = map[string]any{"domain": r.Domain, "id": r.ID}
	}
	b, err := canonical.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal refs: %w", err)
	}
	return string(b), nil
}

func unmarshalRefs(data string) ([]feed.Ref, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var refs []feed.Ref
	if err := json.Unmarshal([]byte(data), &refs); err != nil {
		return nil, fmt.Errorf("unmarshal refs: %w", err)
	}
	return refs, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
