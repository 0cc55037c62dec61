package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"estimmo/server/internal/models"
)

// Config holds the bot credentials. When disabled, every send is a no-op.
type Config struct {
	Enabled  bool
	BotToken string
	ChatID   string
}

// Service notifies the agency chat about new leads.
type Service struct {
	logger  *logrus.Logger
	client  *http.Client
	config  Config
	baseURL string
}

func NewService(logger *logrus.Logger, config Config) *Service {
	return &Service{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		config:  config,
		baseURL: "https://api.telegram.org",
	}
}

// SendMessage sends a message to the configured Telegram chat.
func (s *Service) SendMessage(message string) error {
	if !s.config.Enabled {
		return nil
	}

	if s.config.BotToken == "" {
		return errors.New("Telegram bot token is not configured")
	}

	if s.config.ChatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.config.BotToken)
	payload := map[string]interface{}{
		"chat_id":    s.config.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		default:
			return fmt.Errorf("Telegram API returned status %d: %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

// NotifyNewLead sends the lead summary to the agency chat. Failures are
// logged by the caller; a lost notification never blocks the submission.
func (s *Service) NotifyNewLead(lead *models.Lead) error {
	estimate := "non disponible"
	if lead.Estimate != nil {
		estimate = fmt.Sprintf("%.0f €", *lead.Estimate)
	}

	callback := ""
	if lead.CallbackRequested {
		callback = "\n📞 <b>Rappel demandé</b>"
	}

	message := fmt.Sprintf(
		"🏠 <b>Nouveau lead</b>\n\n"+
			"<b>%s</b>\n%s\n%s\n\n"+
			"Bien : %s, %.0f m² (%s)\nProjet : %s\nEstimation : %s%s",
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.PropertyType,
		lead.Surface,
		lead.Condition,
		lead.Project,
		estimate,
		callback,
	)

	return s.SendMessage(message)
}
