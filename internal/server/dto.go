package server

import (
	"encoding/json"

	"crewplan/internal/domain"
)

// Request payloads

type IngestRequest struct {
	Mode    string          `json:"mode,omitempty" enum:"replace,append"`
	Records []domain.Record `json:"records"`
}

type CreateRecordRequest struct {
	Record domain.Record `json:"record"`
}

// Rules travel in their flat wire form, so requests carry raw JSON and let
// the domain decoder discriminate on "type".
type RuleRequest = json.RawMessage

// Response payloads

type IngestResponse struct {
	Entity string `json:"entity"`
	Count  int    `json:"count"`
	Mode   string `json:"mode" enum:"replace,append"`
}

type RecordListResponse struct {
	Entity  string          `json:"entity"`
	Count   int             `json:"count"`
	Records []domain.Record `json:"records"`
}

type RuleListResponse struct {
	Count int           `json:"count"`
	Rules []domain.Rule `json:"rules"`
}

type ConflictListResponse struct {
	Count     int               `json:"count"`
	Conflicts []domain.Conflict `json:"conflicts"`
}

type RunListResponse struct {
	Count int                    `json:"count"`
	Runs  []domain.ValidationRun `json:"runs"`
}

type EventListResponse struct {
	Count  int            `json:"count"`
	Events []domain.Event `json:"events"`
}
