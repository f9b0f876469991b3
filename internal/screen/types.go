package screen

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/screenflow/screenflow/internal/remotedata"
)

// Pattern classifies a screen template. The pattern drives the cache TTL
// policy: login-type screens must never be cached.
type Pattern string

const (
	PatternList    Pattern = "list"
	PatternDetail  Pattern = "detail"
	PatternForm    Pattern = "form"
	PatternGrid    Pattern = "grid"
	PatternLogin   Pattern = "login"
	PatternUnknown Pattern = "unknown"
)

// ParsePattern maps a server pattern string to a known Pattern.
func ParsePattern(s string) Pattern {
	switch Pattern(s) {
	case PatternList, PatternDetail, PatternForm, PatternGrid, PatternLogin:
		return Pattern(s)
	default:
		return PatternUnknown
	}
}

// TTLPolicy resolves the cache TTL for a pattern. A resolved TTL of zero
// means the pattern is never cached.
type TTLPolicy struct {
	Default    time.Duration
	PerPattern map[Pattern]time.Duration
}

// DefaultTTLPolicy caches everything for 30 minutes except login screens.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Default: 30 * time.Minute,
		PerPattern: map[Pattern]time.Duration{
			PatternLogin: 0,
		},
	}
}

// For returns the TTL for a pattern.
func (p TTLPolicy) For(pattern Pattern) time.Duration {
	if ttl, ok := p.PerPattern[pattern]; ok {
		return ttl
	}
	return p.Default
}

// Template is the parsed layout tree of a screen.
type Template struct {
	Zones []Zone `json:"zones"`
}

// Zone is one node of the template tree.
type Zone struct {
	ID       string                     `json:"id"`
	Type     string                     `json:"type"`
	Props    map[string]json.RawMessage `json:"props,omitempty"`
	Children []Zone                     `json:"children,omitempty"`
}

// Definition is a fully parsed screen definition. Immutable once constructed;
// the cache hands out the same pointer to every caller.
type Definition struct {
	Key          string
	Name         string
	Pattern      Pattern
	MajorVersion int
	Template     *Template
	DataEndpoint string
	PageConfig   *remotedata.PageConfig
	SlotData     map[string]json.RawMessage
	HandlerKey   string
}

// BundleEntry is one screen of a server-pushed seed bundle. Unlike the fetch
// payload, the bundle carries the version as a full semver string.
type BundleEntry struct {
	ScreenKey    string                     `json:"screenKey"`
	ScreenName   string                     `json:"screenName"`
	Pattern      string                     `json:"pattern"`
	Version      string                     `json:"version"`
	Template     json.RawMessage            `json:"template"`
	DataEndpoint string                     `json:"dataEndpoint,omitempty"`
	DataConfig   *remotedata.PageConfig     `json:"dataConfig,omitempty"`
	SlotData     map[string]json.RawMessage `json:"slotData,omitempty"`
	HandlerKey   string                     `json:"handlerKey,omitempty"`
}

var errEmptyTemplate = errors.New("template has no zones")

// parseTemplate decodes and validates a raw template tree.
func parseTemplate(raw json.RawMessage) (*Template, error) {
	if len(raw) == 0 {
		return nil, errEmptyTemplate
	}
	var tpl Template
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if len(tpl.Zones) == 0 {
		return nil, errEmptyTemplate
	}
	return &tpl, nil
}

// majorVersion extracts the leading integer of a dot-separated semantic
// version string ("4.2.1" -> 4).
func majorVersion(version string) (int, error) {
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0, fmt.Errorf("parse major version %q: %w", version, err)
	}
	return major, nil
}
