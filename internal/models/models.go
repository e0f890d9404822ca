// Package models defines the core data structures for the greenlight service.
//
// It includes the coordination record types, the publish-phase enum, and the
// request/response payloads shared between the API and coordination modules.
package models

import (
	"errors"
	"regexp"
)

// Phase identifies a step of the publish handshake reported by the client.
// Any value outside the known constants is a generic phase: it is recorded
// for bookkeeping but drives no state transition.
type Phase string

const (
	// PhasePrepared is reported when the client has located the publish
	// control and read a candidate publish duration.
	PhasePrepared Phase = "prepared"
	// PhaseBeforeClick is reported immediately before the client presses
	// the publish control. It opens the auto-finalize window.
	PhaseBeforeClick Phase = "before_click"
	// PhaseAfterClick is reported once the client has observed the page
	// after pressing. It finalizes the episode.
	PhaseAfterClick Phase = "after_click"
	// PhasePostFlow is a late finalize report sent after the client has
	// navigated away from the publish page.
	PhasePostFlow Phase = "post_flow"
)

// IsFinalize reports whether the phase closes an episode.
func (p Phase) IsFinalize() bool {
	return p == PhaseAfterClick || p == PhasePostFlow
}

// Fixed outcome messages. Finalize echoes must be byte-identical across
// repeated reports, so these are never composed dynamically.
const (
	MsgPublishSuccess = "Publish Successful!"
	MsgPublishFailed  = "Publish Failed!"
	MsgRecorded       = "Recorded."
	MsgChecking       = "Recorded. Checking publish result…"
)

// Error variables for request validation and key resolution.
var (
	ErrMissingUserName = errors.New("missing user_name")
	ErrMissingCargoID  = errors.New("missing cargo_id")
	ErrEmptyCargoKey   = errors.New("cargo key resolved to empty")
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// CargoMeta holds the per-cargo metadata captured from the exchange page.
type CargoMeta struct {
	ID        string `json:"id"`
	StartDate string `json:"start_date,omitempty"`
	ForDays   *int   `json:"for_days"`
}

// CargoDoc is one user's inventory document: the cargo identifiers currently
// listed on the exchange, in page order, plus their metadata.
type CargoDoc struct {
	User    string      `json:"user"`
	IDs     []string    `json:"ids"`
	IDsMeta []CargoMeta `json:"ids_meta"`
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// DigitSuffix returns the trailing decimal digits of s, or "" if s does not
// end in digits. Cargo identifiers from different pages share this suffix.
func DigitSuffix(s string) string {
	m := trailingDigits.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// MetaFor looks up metadata for a cargo identifier: first by exact id, then
// by trailing-digit suffix so raw ids match their BM-prefixed aliases.
func (d CargoDoc) MetaFor(id string) CargoMeta {
	if id == "" {
		return CargoMeta{}
	}
	for _, m := range d.IDsMeta {
		if m.ID != "" && m.ID == id {
			return m
		}
	}
	suf := DigitSuffix(id)
	if suf == "" {
		return CargoMeta{}
	}
	for _, m := range d.IDsMeta {
		if DigitSuffix(m.ID) == suf {
			return m
		}
	}
	return CargoMeta{}
}

// PageEventRequest is the payload of a page navigation ping.
type PageEventRequest struct {
	Page      string `json:"page"`
	UserName  string `json:"user_name"`
	CargoID   string `json:"cargo_id,omitempty"`
	BMID      string `json:"bm_id,omitempty"`
	PageState string `json:"page_state,omitempty"`
	URL       string `json:"url,omitempty"`
}

// PageEventResponse answers a page navigation ping.
type PageEventResponse struct {
	OK       bool   `json:"ok"`
	Go       bool   `json:"go"`
	Message  string `json:"message,omitempty"`
	ForDays  int    `json:"for_days,omitempty"`
	CargoKey string `json:"cargo_key,omitempty"`
}

// GreenlightCheckRequest is the payload of a press-consume check.
type GreenlightCheckRequest struct {
	UserName string `json:"user_name"`
	CargoID  string `json:"cargo_id"`
	BMID     string `json:"bm_id,omitempty"`
}

// GreenlightCheckResponse answers a press-consume check. Go is true at most
// once per episode.
type GreenlightCheckResponse struct {
	OK       bool   `json:"ok"`
	Go       bool   `json:"go"`
	CargoKey string `json:"cargo_key"`
}

// PressAckRequest is the payload of a publish-phase report. Wire field names
// match the exchange page vocabulary the client scrapes.
type PressAckRequest struct {
	UserName    string `json:"user_name"`
	CargoID     string `json:"cargo_id"`
	BMID        string `json:"bm_id,omitempty"`
	Phase       string `json:"when"`
	LoadState   string `json:"incarcare"`
	PublishDays *int   `json:"timp_de"`
}

// PressAckResponse answers a publish-phase report. Success is null until the
// finalize phase has been processed for the episode.
type PressAckResponse struct {
	OK       bool   `json:"ok"`
	Success  *bool  `json:"success"`
	Message  string `json:"message"`
	CargoID  string `json:"cargo_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// SetGreenlightRequest is the payload of an explicit arm override.
type SetGreenlightRequest struct {
	UserName string `json:"user_name"`
	CargoID  string `json:"cargo_id"`
	BMID     string `json:"bm_id,omitempty"`
	Press    *bool  `json:"press"` // nil defaults to true
}

// SetGreenlightResponse answers an explicit arm override.
type SetGreenlightResponse struct {
	OK       bool   `json:"ok"`
	Armed    bool   `json:"armed"`
	CargoKey string `json:"cargo_key"`
}

// ProductRow is one row scraped from an exchange product listing page.
type ProductRow struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	StartDate string `json:"start_date,omitempty"`
	ForDays   *int   `json:"for_days"`
}

// ActiveProductsRequest is the payload of an active-products page report.
type ActiveProductsRequest struct {
	UserName       string       `json:"user_name"`
	ActiveProducts int          `json:"active_products"`
	Rows           []ProductRow `json:"rows"`
}

// IDsDiff describes how an inventory replacement changed the stored ids.
type IDsDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Kept    []string `json:"kept"`
}

// CargoItem is one enriched inventory entry returned after a replacement.
type CargoItem struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	StartDate string `json:"start_date"`
	ForDays   *int   `json:"for_days"`
}

// ActiveProductsResponse answers an active-products page report.
type ActiveProductsResponse struct {
	OK           bool        `json:"ok"`
	Mode         string      `json:"mode"`
	ReceivedRows int         `json:"received_rows"`
	OwnRows      int         `json:"own_rows"`
	UserName     string      `json:"user_name"`
	IDsNow       []string    `json:"ids_now"`
	IDsMeta      []CargoMeta `json:"ids_meta"`
	Items        []CargoItem `json:"items"`
	Diff         IDsDiff     `json:"diff"`
}

// DeletedProductsRequest is the payload of a deleted-products page report.
type DeletedProductsRequest struct {
	UserName    string       `json:"user_name"`
	SummaryText string       `json:"summary_text"`
	Rows        []ProductRow `json:"rows"`
}

// DeletedProductsResponse answers a deleted-products page report.
type DeletedProductsResponse struct {
	OK           bool   `json:"ok"`
	UserName     string `json:"user_name"`
	SummaryText  string `json:"summary_text"`
	OwnRows      int    `json:"own_rows"`
	ReceivedRows int    `json:"received_rows"`
}

// UserIDsResponse returns a user's stored inventory ids and metadata.
type UserIDsResponse struct {
	User    string      `json:"user"`
	IDs     []string    `json:"ids"`
	IDsMeta []CargoMeta `json:"ids_meta"`
}
