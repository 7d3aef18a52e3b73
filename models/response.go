package models

import "time"

// Version is reported in every response envelope.
const Version = "1.0.0"

// Solution status values.
const (
	StatusOK     = 200
	StatusFailed = 500
)

// Solution is the result of one crawl. Exactly one is produced per request:
// Status 200 with Response holding the rendered page, or Status 500 with
// Response holding a diagnostic.
type Solution struct {
	URL              string            `json:"url"`
	Status           int               `json:"status"`
	Headers          map[string]string `json:"headers"`
	Response         string            `json:"response"`
	Cookies          []Cookie          `json:"cookies"`
	UserAgent        string            `json:"userAgent"`
	ScreenshotBase64 string            `json:"screenshotBase64,omitempty"`
}

// Failed reports whether the solution carries a diagnostic instead of content.
func (s *Solution) Failed() bool {
	return s.Status != StatusOK
}

// FailedSolution builds a status-500 solution for url with the given diagnostic.
func FailedSolution(url, diagnostic string) *Solution {
	return &Solution{
		URL:      url,
		Status:   StatusFailed,
		Response: diagnostic,
		Cookies:  []Cookie{},
	}
}

// Envelope is the body returned by every fetch endpoint.
type Envelope struct {
	Status         string    `json:"status"`
	Message        *string   `json:"message"`
	StartTimestamp int64     `json:"startTimestamp"`
	EndTimestamp   int64     `json:"endTimestamp"`
	Version        string    `json:"version"`
	Solution       *Solution `json:"solution"`
}

// NewEnvelope returns an "ok" envelope stamped with the current time.
func NewEnvelope() *Envelope {
	now := time.Now().UnixMilli()
	return &Envelope{
		Status:         "ok",
		StartTimestamp: now,
		EndTimestamp:   now,
		Version:        Version,
	}
}

// Finish attaches the solution, mirrors a failure diagnostic into Message
// and stamps the end time.
func (e *Envelope) Finish(sol *Solution) *Envelope {
	e.Solution = sol
	if sol != nil && sol.Failed() {
		msg := sol.Response
		e.Message = &msg
	}
	e.EndTimestamp = time.Now().UnixMilli()
	return e
}

// ErrorResponse is returned with HTTP 400 when a payload cannot be decoded.
type ErrorResponse struct {
	Status  string       `json:"status"`
	Error   *ErrorDetail `json:"error"`
	Version string       `json:"version"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status   string         `json:"status"` // "healthy" or "degraded"
	Uptime   string         `json:"uptime"`
	Backends []SessionStats `json:"backends"`
	Version  string         `json:"version"`
}

// SessionStats reports the state of one backend's browser session.
type SessionStats struct {
	Backend  string  `json:"backend"`
	Started  bool    `json:"started"`
	Busy     bool    `json:"busy"`
	Uses     int     `json:"uses"`
	Restarts int     `json:"restarts"`
	ErrScore float64 `json:"errScore"`
	Age      string  `json:"age,omitempty"`
}
