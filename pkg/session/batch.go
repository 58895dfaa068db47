package session

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/vango-dev/vbridge/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// UpdateKind names a batch update.
type UpdateKind string

const (
	UpdateText        UpdateKind = "textContent"
	UpdateMarkup      UpdateKind = "innerHTML"
	UpdateAttribute   UpdateKind = "setAttribute"
	UpdateAddClass    UpdateKind = "addClass"
	UpdateRemoveClass UpdateKind = "removeClass"
)

// Update is one entry of a host batch, addressed by element id.
type Update struct {
	ID    string     `json:"elementId"`
	Kind  UpdateKind `json:"type"`
	Name  string     `json:"name,omitempty"`
	Value string     `json:"value"`
}

// BatchError reports the update that stopped a batch.
type BatchError struct {
	Index  int
	Update Update
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch update %d (%s #%s): %v", e.Index, e.Update.Kind, e.Update.ID, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// ParseBatch decodes a JSON array of updates.
func ParseBatch(data []byte) ([]Update, error) {
	var updates []Update
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, errors.New("B601").WithDetail("batch updates").Wrap(err)
	}
	return updates, nil
}

// ApplyBatch applies updates in order. The first failure stops the batch and
// is returned as a *BatchError.
func (s *Session) ApplyBatch(updates []Update) error {
	for i, u := range updates {
		if err := s.applyUpdate(u); err != nil {
			s.logger.Warn("batch update failed", "index", i, "kind", string(u.Kind), "id", u.ID, "err", err)
			return &BatchError{Index: i, Update: u, Err: err}
		}
	}
	return nil
}

func (s *Session) applyUpdate(u Update) error {
	p, err := s.GetElementByID(u.ID)
	if err != nil {
		return err
	}
	switch u.Kind {
	case UpdateText:
		return p.SetText(u.Value)
	case UpdateMarkup:
		return p.SetMarkup(u.Value)
	case UpdateAttribute:
		return p.SetAttribute(u.Name, u.Value)
	case UpdateAddClass:
		return p.SetClass(u.Value, true)
	case UpdateRemoveClass:
		return p.SetClass(u.Value, false)
	default:
		return errors.New("B208").WithDetailf("kind %q", u.Kind)
	}
}
