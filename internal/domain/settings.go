package domain

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Visibility is either Unconfigured, which shows everything, or Configured
// with an explicit set, which shows only its members. A configured empty set
// shows nothing. The zero value is Unconfigured.
type Visibility struct {
	configured bool
	values     []string
}

// Unconfigured returns the show-everything visibility.
func Unconfigured() Visibility {
	return Visibility{}
}

// Configured returns a visibility that allows exactly values, compared
// case-insensitively. Duplicates are dropped and order is kept.
func Configured(values ...string) Visibility {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if slices.ContainsFunc(out, func(o string) bool { return NormalizeKey(o) == NormalizeKey(v) }) {
			continue
		}
		out = append(out, v)
	}
	return Visibility{configured: true, values: out}
}

// IsConfigured reports whether an explicit set was configured.
func (v Visibility) IsConfigured() bool {
	return v.configured
}

// Values returns the configured set, or nil when unconfigured.
func (v Visibility) Values() []string {
	if !v.configured {
		return nil
	}
	return slices.Clone(v.values)
}

// Allows reports whether name is visible.
func (v Visibility) Allows(name string) bool {
	if !v.configured {
		return true
	}
	key := NormalizeKey(name)
	for _, val := range v.values {
		if NormalizeKey(val) == key {
			return true
		}
	}
	return false
}

// Restrict keeps only configured values that appear in vocabulary, using
// the vocabulary's spelling. Unconfigured stays unconfigured.
func (v Visibility) Restrict(vocabulary []string) Visibility {
	if !v.configured {
		return v
	}
	kept := make([]string, 0, len(v.values))
	for _, val := range v.values {
		for _, word := range vocabulary {
			if NormalizeKey(word) == NormalizeKey(val) {
				kept = append(kept, word)
				break
			}
		}
	}
	return Configured(kept...)
}

// MarshalJSON encodes Unconfigured as null and Configured as an array.
func (v Visibility) MarshalJSON() ([]byte, error) {
	if !v.configured {
		return []byte("null"), nil
	}
	if v.values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v.values)
}

// UnmarshalJSON decodes null as Unconfigured and an array as Configured.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Unconfigured()
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*v = Configured(values...)
	return nil
}

// PublicSettings are the operator-controlled visibility rules.
type PublicSettings struct {
	Categories     Visibility `json:"enabledCategories"`
	PaymentMethods Visibility `json:"enabledPaymentMethods"`
}

// Sanitize restricts both rules to the known vocabularies.
func (s PublicSettings) Sanitize() PublicSettings {
	return PublicSettings{
		Categories:     s.Categories.Restrict(AllCategories),
		PaymentMethods: s.PaymentMethods.Restrict(AllPaymentMethodNames()),
	}
}
