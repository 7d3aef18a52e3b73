package models

import (
	"fmt"
	"time"
)

// Trigger is the kind of interaction an action performs.
type Trigger string

const (
	TriggerClickable Trigger = "clickable"
	TriggerInput     Trigger = "input"
	TriggerLocated   Trigger = "located"
)

// SelectorKind tells a driver how to interpret Selector.Value.
type SelectorKind int

const (
	SelectorNone SelectorKind = iota
	SelectorCSS
	SelectorText
	SelectorXPath
)

func (k SelectorKind) String() string {
	switch k {
	case SelectorCSS:
		return "css"
	case SelectorText:
		return "text"
	case SelectorXPath:
		return "xpath"
	default:
		return "none"
	}
}

// Selector locates one element on the page.
type Selector struct {
	Kind  SelectorKind
	Value string
}

func (s Selector) String() string {
	return fmt.Sprintf("%s(%q)", s.Kind, s.Value)
}

// Empty reports whether no selector was supplied.
func (s Selector) Empty() bool {
	return s.Kind == SelectorNone || s.Value == ""
}

// Cookie is a browser cookie as exchanged with callers and drivers.
// SameSite is free text on input and one of Strict, Lax, None after
// normalization.
type Cookie struct {
	Name     string  `json:"name" binding:"required"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// ActionPayload is one interaction step as sent by the caller.
type ActionPayload struct {
	// Trigger is one of "clickable", "input", "located". Required.
	Trigger string `json:"trigger" binding:"required,oneof=clickable input located"`

	// Select is a CSS selector.
	Select string `json:"select,omitempty"`

	// Find matches an element by its visible text.
	Find string `json:"find,omitempty"`

	// XPath is an XPath expression.
	XPath string `json:"xpath,omitempty"`

	// Value is the text typed by an "input" step.
	Value string `json:"value,omitempty"`

	// Timeout is the per-step wait bound in seconds. Default: 10.
	Timeout *int `json:"timeout,omitempty" binding:"omitempty,min=0"`
}

// FetchPayload is the decoded body of POST /v1 and POST /v2.
// Pointer fields distinguish "absent" from an explicit zero.
type FetchPayload struct {
	// URL is the page to render. Default: https://www.google.com/.
	URL string `json:"url,omitempty"`

	// Cookies are applied to the session once the first navigation lands.
	Cookies []Cookie `json:"cookies,omitempty" binding:"omitempty,dive"`

	// RetryCount is the number of additional attempts after the first. Default: 3.
	RetryCount *int `json:"retry_count,omitempty" binding:"omitempty,min=0"`

	// PageSize is the content length (bytes) a page must exceed to be
	// considered loaded. Default: 100.
	PageSize *int `json:"page_size,omitempty" binding:"omitempty,min=0"`

	// MaxTimeout bounds the load polling window per attempt, in milliseconds.
	// Default: 60000.
	MaxTimeout *int `json:"max_timeout,omitempty" binding:"omitempty,min=0"`

	// Screenshot requests a base64 PNG of the final page.
	Screenshot bool `json:"screenshot,omitempty"`

	// Actions run in order once the page has loaded.
	Actions []ActionPayload `json:"actions,omitempty" binding:"omitempty,dive"`
}

// FetchDefaults holds the values used for fields a caller leaves out.
type FetchDefaults struct {
	URL           string
	RetryCount    int
	PageSize      int
	MaxTimeout    time.Duration
	ActionTimeout time.Duration
}

// DefaultFetchDefaults returns the stock defaults.
func DefaultFetchDefaults() FetchDefaults {
	return FetchDefaults{
		URL:           "https://www.google.com/",
		RetryCount:    3,
		PageSize:      100,
		MaxTimeout:    60 * time.Second,
		ActionTimeout: 10 * time.Second,
	}
}

// Action is a validated interaction step.
type Action struct {
	Trigger  Trigger
	Selector Selector
	Value    string
	Timeout  time.Duration
}

// CrawlRequest is the immutable, defaulted form of a FetchPayload.
type CrawlRequest struct {
	URL               string
	Cookies           []Cookie
	RetryCount        int
	PageSizeThreshold int
	MaxTimeout        time.Duration
	CaptureScreenshot bool
	Actions           []Action
}

// NewCrawlRequest applies defaults to p and returns the request the engine
// consumes. Slices are copied so later changes to p do not leak in.
func NewCrawlRequest(p FetchPayload, d FetchDefaults) CrawlRequest {
	req := CrawlRequest{
		URL:               p.URL,
		RetryCount:        d.RetryCount,
		PageSizeThreshold: d.PageSize,
		MaxTimeout:        d.MaxTimeout,
		CaptureScreenshot: p.Screenshot,
	}
	if req.URL == "" {
		req.URL = d.URL
	}
	if p.RetryCount != nil {
		req.RetryCount = max(*p.RetryCount, 0)
	}
	if p.PageSize != nil {
		req.PageSizeThreshold = *p.PageSize
	}
	if p.MaxTimeout != nil {
		req.MaxTimeout = time.Duration(*p.MaxTimeout) * time.Millisecond
	}

	req.Cookies = append([]Cookie(nil), p.Cookies...)

	req.Actions = make([]Action, 0, len(p.Actions))
	for _, a := range p.Actions {
		req.Actions = append(req.Actions, a.toAction(d.ActionTimeout))
	}
	return req
}

// toAction resolves the selector (CSS first, then text, then XPath) and the
// step timeout.
func (a ActionPayload) toAction(defaultTimeout time.Duration) Action {
	act := Action{
		Trigger: Trigger(a.Trigger),
		Value:   a.Value,
		Timeout: defaultTimeout,
	}
	if a.Timeout != nil {
		act.Timeout = time.Duration(*a.Timeout) * time.Second
	}
	switch {
	case a.Select != "":
		act.Selector = Selector{Kind: SelectorCSS, Value: a.Select}
	case a.Find != "":
		act.Selector = Selector{Kind: SelectorText, Value: a.Find}
	case a.XPath != "":
		act.Selector = Selector{Kind: SelectorXPath, Value: a.XPath}
	}
	return act
}
