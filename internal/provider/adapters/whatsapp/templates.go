package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/chanmux/chanmux/internal/provider"
)

const maxTemplatePages = 10

type templatesResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Language   string `json:"language"`
		Status     string `json:"status"`
		Category   string `json:"category"`
		Components []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"components"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// SyncTemplates fetches the WABA's current message templates, following
// Graph API paging.
func (a *Adapter) SyncTemplates(ctx context.Context, cfg provider.ChannelConfig) ([]provider.Template, error) {
	wabaID := provider.ReadString(cfg.Credentials, "waba_id")
	accessToken := provider.ReadString(cfg.Credentials, "access_token")
	if wabaID == "" || accessToken == "" {
		return nil, provider.NewError(Type, "sync_templates", provider.CodeInvalidConfig, "channel credentials are incomplete")
	}

	endpoint := fmt.Sprintf("%s/%s/%s/message_templates?fields=id,name,language,status,category,components&access_token=%s",
		a.opts.GraphBaseURL, a.opts.GraphVersion, wabaID, url.QueryEscape(accessToken))

	items := make([]provider.Template, 0)
	for page := 0; endpoint != "" && page < maxTemplatePages; page++ {
		var out templatesResponse
		if err := a.client.GetJSON(ctx, "sync_templates", endpoint, nil, &out); err != nil {
			return nil, err
		}
		for _, item := range out.Data {
			body := ""
			for _, component := range item.Components {
				if strings.EqualFold(component.Type, "BODY") {
					body = component.Text
					break
				}
			}
			items = append(items, provider.Template{
				ExternalID: item.ID,
				Name:       item.Name,
				Locale:     item.Language,
				Status:     provider.ParseTemplateStatus(item.Status),
				Category:   item.Category,
				Body:       body,
			})
		}
		endpoint = out.Paging.Next
	}

	a.logger.Debug("templates fetched", slog.String("waba_id", wabaID), slog.Int("count", len(items)))
	return items, nil
}
