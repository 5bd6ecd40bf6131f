// Package whatsapp implements the WhatsApp Cloud provider adapter.
package whatsapp

import "github.com/chanmux/chanmux/internal/provider"

// Type is the registered provider identifier for WhatsApp Cloud.
const Type provider.Type = "whatsapp"

func descriptor() provider.Descriptor {
	return provider.Descriptor{
		Type:        Type,
		DisplayName: "WhatsApp Cloud",
		ClaimMode:   provider.ClaimModeRedirect,
		Capabilities: provider.Capabilities{
			Templates:   true,
			Attachments: true,
			Buttons:     true,
		},
		ConfigSchema: provider.ConfigSchema{
			Version: 1,
			Fields: map[string]provider.FieldSchema{
				"waba_id": {
					Type:        provider.FieldString,
					Required:    true,
					Title:       "WhatsApp Business Account ID",
					Description: "Returned by the embedded signup flow.",
				},
				"phone_number_id": {
					Type:        provider.FieldString,
					Required:    true,
					Title:       "Phone Number ID",
					Description: "The Cloud API phone number to claim.",
				},
			},
		},
	}
}
