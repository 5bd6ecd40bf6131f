// Package provider defines the adapter contract normalizing each messaging
// provider's claim handshake, credential format, and template API.
package provider

import (
	"context"
	"strings"
	"time"
)

// Type identifies a messaging provider.
type Type string

func (t Type) String() string {
	return string(t)
}

// ClaimMode describes how a provider attaches a channel: "redirect" claims
// round-trip through the provider's OAuth consent page; "direct" claims are
// completed from user-supplied credentials in one step.
type ClaimMode string

const (
	ClaimModeRedirect ClaimMode = "redirect"
	ClaimModeDirect   ClaimMode = "direct"
)

// Capabilities is the feature matrix persisted on each claimed channel.
type Capabilities struct {
	Templates   bool `json:"templates"`
	Attachments bool `json:"attachments"`
	Buttons     bool `json:"buttons"`
}

// Descriptor is the static metadata an adapter publishes about its provider.
type Descriptor struct {
	Type         Type         `json:"type"`
	DisplayName  string       `json:"display_name"`
	ClaimMode    ClaimMode    `json:"claim_mode"`
	Capabilities Capabilities `json:"capabilities"`
	ConfigSchema ConfigSchema `json:"config_schema"`
}

// ChannelConfig is the adapter-facing view of a claimed channel: identity
// plus opened (unsealed) credentials.
type ChannelConfig struct {
	ID          string
	OrgID       string
	Type        Type
	Address     string
	Credentials map[string]any
}

// ChannelSpec is an adapter's description of a successfully claimed channel,
// consumed by the registry.
type ChannelSpec struct {
	Address      string
	Name         string
	Credentials  map[string]any
	Capabilities Capabilities
}

// StartClaimRequest carries the user-supplied parameters opening a claim.
type StartClaimRequest struct {
	OrgID       string
	Params      map[string]any
	StateToken  string
	CallbackURL string
}

// ClaimGrant is the result of StartClaim. Redirect-mode grants carry the URL
// the user must visit; direct-mode grants carry the finished channel spec.
type ClaimGrant struct {
	Mode        ClaimMode
	RedirectURL string
	Partial     map[string]any
	Spec        *ChannelSpec
}

// ClaimContext is the session snapshot handed to CompleteClaim.
type ClaimContext struct {
	OrgID       string
	Provider    Type
	Partial     map[string]any
	CallbackURL string
}

// CallbackData is the provider callback payload forwarded to CompleteClaim.
type CallbackData struct {
	Values map[string]string
}

// Value returns a trimmed callback field.
func (d CallbackData) Value(key string) string {
	if d.Values == nil {
		return ""
	}
	return strings.TrimSpace(d.Values[key])
}

// TemplateStatus mirrors the approval states providers report for message templates.
type TemplateStatus string

const (
	TemplateStatusApproved TemplateStatus = "approved"
	TemplateStatusPending  TemplateStatus = "pending"
	TemplateStatusRejected TemplateStatus = "rejected"
	TemplateStatusPaused   TemplateStatus = "paused"
)

// Template is one message template fetched from a provider.
type Template struct {
	ExternalID string
	Name       string
	Locale     string
	Status     TemplateStatus
	Category   string
	Body       string
}

// Adapter is the minimal interface every provider implements.
type Adapter interface {
	Type() Type
	Descriptor() Descriptor
}

// ClaimStarter opens a claim handshake.
type ClaimStarter interface {
	StartClaim(ctx context.Context, req StartClaimRequest) (ClaimGrant, error)
}

// ClaimCompleter finishes a redirect-mode claim from provider callback data.
type ClaimCompleter interface {
	CompleteClaim(ctx context.Context, sess ClaimContext, cb CallbackData) (ChannelSpec, error)
}

// TemplateSyncer fetches the provider's current template set for a channel.
// Implemented only by adapters whose capabilities include templates.
type TemplateSyncer interface {
	SyncTemplates(ctx context.Context, cfg ChannelConfig) ([]Template, error)
}

// CredentialRefresher rotates short-lived provider credentials
// (e.g. the Teams bot-framework access token).
type CredentialRefresher interface {
	RefreshCredentials(ctx context.Context, cfg ChannelConfig) (map[string]any, error)
	RefreshInterval() time.Duration
}

// ParseTemplateStatus normalizes a provider-reported status string.
func ParseTemplateStatus(raw string) TemplateStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved":
		return TemplateStatusApproved
	case "rejected":
		return TemplateStatusRejected
	case "paused", "disabled":
		return TemplateStatusPaused
	default:
		return TemplateStatusPending
	}
}
