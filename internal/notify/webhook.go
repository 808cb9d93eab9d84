package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"text/template"
	"time"

	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/repository"
	"github.com/pccr10001/smsfleet/pkg/logger"
)

// WebhookService pushes newly ingested SMS messages to the webhooks
// configured for their (device, port). Delivery is best effort and
// never blocks ingest.
type WebhookService struct {
	repo *repository.WebhookRepository
}

func NewWebhookService(repo *repository.WebhookRepository) *WebhookService {
	return &WebhookService{repo: repo}
}

func (s *WebhookService) Dispatch(sms *model.SmsMessage) {
	webhooks, err := s.repo.FindMatching(sms.DeviceID, sms.ComPort)
	if err != nil {
		logger.Log.Errorf("Failed to fetch webhooks for device %s: %v", sms.DeviceID, err)
		return
	}

	for _, wh := range webhooks {
		go s.send(wh, sms)
	}
}

func (s *WebhookService) send(wh model.Webhook, sms *model.SmsMessage) {
	content := sms.MessageContent
	if wh.Template != "" {
		tmpl, err := template.New("msg").Parse(wh.Template)
		if err == nil {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, sms); err == nil {
				content = buf.String()
			}
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"text": content,
		"sms":  sms,
	})
	if err != nil {
		logger.Log.Errorf("Failed to marshal webhook payload: %v", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewBuffer(payload))
	if err != nil {
		logger.Log.Errorf("Failed to create webhook request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		logger.Log.Errorf("Failed to send webhook to %s: %v", wh.URL, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logger.Log.Errorf("Webhook %s returned status: %d", wh.URL, resp.StatusCode)
	}
}
