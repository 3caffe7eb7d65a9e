package notification

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const persistedIDPrefix = "notif_"

// ErrInvalidRef indicates a notification id that matches neither the
// synthesized nor the persisted form.
var ErrInvalidRef = errors.New("notification: invalid id")

// Ref identifies a notification. Synthesized entries carry no row of
// their own, so the two variants dispatch mark-read differently.
type Ref interface {
	isRef()
}

// SynthesizedRef points at the source record a synthesized entry was
// derived from. Its read-state lives on that record.
type SynthesizedRef struct {
	Source   Kind
	SourceID int64
}

func (SynthesizedRef) isRef() {}

// PersistedRef points at a notifications-table row.
type PersistedRef struct {
	ID string
}

func (PersistedRef) isRef() {}

// ParseRef classifies a raw notification id into its variant.
// Accepted forms: "contact-<n>" (synthesized) and "notif_<uuid>"
// (persisted).
func ParseRef(raw string) (Ref, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRef)
	}
	if strings.HasPrefix(trimmed, persistedIDPrefix) {
		return PersistedRef{ID: trimmed}, nil
	}
	if rest, ok := strings.CutPrefix(trimmed, string(KindContact)+"-"); ok {
		sourceID, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || sourceID <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRef, raw)
		}
		return SynthesizedRef{Source: KindContact, SourceID: sourceID}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidRef, raw)
}

// SynthesizedID renders the id for a synthesized entry.
func SynthesizedID(kind Kind, sourceID int64) string {
	return fmt.Sprintf("%s-%d", kind, sourceID)
}

// IDProvider issues identifiers for persisted notification rows.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues prefixed UUIDv7
// identifiers for persisted rows.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return persistedIDPrefix + value.String(), nil
}
