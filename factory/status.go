/*
Package factory provides JSON to Go master data conversion.

PURPOSE:
  Converts JSON master data into the structures the timesheet engine
  reads: the status catalog (action flags and transition targets per
  status) and reference codes (projects, activities, work locations,
  travel types). Operators maintain these files; the factory rejects
  anything that contradicts the fixed transition table.

STATUS JSON SCHEMA:
  [
    {"code": "open",      "allow_done_action": true},
    {"code": "processed", "allow_done_action": true,  "transition_target": "done"},
    {"code": "done",      "allow_release_action": true, "transition_target": "released"},
    {"code": "released"}
  ]

REFERENCE JSON SCHEMA:
  [
    {"kind": "project",  "code": "P-100", "name": "Website relaunch"},
    {"kind": "activity", "code": "DEV"}
  ]

USAGE:
  factory := NewStatusFactory()
  catalog, err := factory.ParseStatusCatalog(data)
  if err != nil {
      return err
  }
  err = store.SaveStatuses(ctx, catalog)

SEE ALSO:
  - timesheet/status.go: StatusMeta and ValidateStatusCatalog
  - store/sqlite/sqlite.go: SaveStatuses, AddReference
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// StatusJSON is the JSON representation of one status master record.
type StatusJSON struct {
	Code               string `json:"code"`
	AllowDoneAction    bool   `json:"allow_done_action,omitempty"`
	AllowReleaseAction bool   `json:"allow_release_action,omitempty"`
	TransitionTarget   string `json:"transition_target,omitempty"`
}

// ReferenceJSON is the JSON representation of one reference code.
type ReferenceJSON struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// Reference is a parsed reference code.
type Reference struct {
	Kind timesheet.ReferenceKind
	Code string
	Name string
}

// =============================================================================
// STATUS FACTORY
// =============================================================================

// StatusFactory converts JSON master data to engine structures.
type StatusFactory struct{}

// NewStatusFactory creates a new status factory.
func NewStatusFactory() *StatusFactory {
	return &StatusFactory{}
}

// ParseStatusCatalog parses and validates a JSON status list.
func (f *StatusFactory) ParseStatusCatalog(data []byte) (map[timesheet.Status]timesheet.StatusMeta, error) {
	var records []StatusJSON
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse status JSON: %w", err)
	}
	return f.FromJSON(records)
}

// FromJSON converts status records into a validated catalog.
func (f *StatusFactory) FromJSON(records []StatusJSON) (map[timesheet.Status]timesheet.StatusMeta, error) {
	catalog := make(map[timesheet.Status]timesheet.StatusMeta, len(records))
	for _, r := range records {
		code := timesheet.Status(r.Code)
		if _, dup := catalog[code]; dup {
			return nil, &timesheet.ValidationError{Field: "code", Message: fmt.Sprintf("status %q listed twice", r.Code)}
		}
		catalog[code] = timesheet.StatusMeta{
			Code:               code,
			AllowDoneAction:    r.AllowDoneAction,
			AllowReleaseAction: r.AllowReleaseAction,
			TransitionTarget:   timesheet.Status(r.TransitionTarget),
		}
	}

	if err := timesheet.ValidateStatusCatalog(catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

// ToJSON converts a catalog to records in lifecycle order.
func (f *StatusFactory) ToJSON(catalog map[timesheet.Status]timesheet.StatusMeta) []StatusJSON {
	var out []StatusJSON
	for _, code := range timesheet.Statuses() {
		meta, ok := catalog[code]
		if !ok {
			continue
		}
		out = append(out, StatusJSON{
			Code:               string(meta.Code),
			AllowDoneAction:    meta.AllowDoneAction,
			AllowReleaseAction: meta.AllowReleaseAction,
			TransitionTarget:   string(meta.TransitionTarget),
		})
	}
	return out
}

// ParseReferences parses a JSON reference list, sorted by kind and code.
func (f *StatusFactory) ParseReferences(data []byte) ([]Reference, error) {
	var records []ReferenceJSON
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse reference JSON: %w", err)
	}

	refs := make([]Reference, 0, len(records))
	for i, r := range records {
		kind, err := parseReferenceKind(r.Kind)
		if err != nil {
			return nil, err
		}
		if r.Code == "" {
			return nil, &timesheet.ValidationError{Field: "code", Message: fmt.Sprintf("reference %d has no code", i)}
		}
		refs = append(refs, Reference{Kind: kind, Code: r.Code, Name: r.Name})
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].Code < refs[j].Code
	})
	return refs, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseReferenceKind(s string) (timesheet.ReferenceKind, error) {
	for _, kind := range timesheet.ReferenceKinds() {
		if string(kind) == s {
			return kind, nil
		}
	}
	return "", &timesheet.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown reference kind %q", s)}
}
