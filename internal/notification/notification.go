package notification

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/metrics"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier 运维告警通知接口（webhook渠道）
type Notifier interface {
	SendAlert(title, content string) error
}

// Manager 通知管理器
// 业务通知走 Enqueue 入队（由投递方异步发送邮件），
// 运维告警（如巡检失败）走 SendAlert 直接推送到配置的webhook
type Manager struct {
	db        *gorm.DB
	notifiers []Notifier
	mu        sync.RWMutex
}

// NewManager 创建通知管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// AddNotifier 注册告警通知渠道
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Enqueue 业务通知入队（fire-and-forget，投递与重试由投递方负责）
func (m *Manager) Enqueue(notifType model.NotificationType, recipientEmail, recipientName, subject, body string, metadata map[string]interface{}) error {
	if recipientEmail == "" {
		return fmt.Errorf("recipient email is required")
	}

	notif := &model.Notification{
		ID:             uuid.New().String(),
		Type:           notifType,
		RecipientEmail: recipientEmail,
		RecipientName:  recipientName,
		Subject:        subject,
		Body:           body,
		Status:         model.NotificationStatusPending,
	}

	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal notification metadata: %w", err)
		}
		notif.Metadata = datatypes.JSON(data)
	}

	if err := m.db.Create(notif).Error; err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	metrics.NotificationsEnqueuedTotal.WithLabelValues(string(notifType)).Inc()
	logger.Debugf("Notification enqueued: type=%s recipient=%s", notifType, recipientEmail)
	return nil
}

// SendAlert 向所有已注册的告警渠道推送告警
func (m *Manager) SendAlert(title, content string) {
	m.mu.RLock()
	notifiers := make([]Notifier, len(m.notifiers))
	copy(notifiers, m.notifiers)
	m.mu.RUnlock()

	for _, n := range notifiers {
		if err := n.SendAlert(title, content); err != nil {
			logger.Errorf("Failed to send alert notification: %v", err)
		}
	}
}

// WebhookNotifier 通用webhook告警通知器
// 可选HMAC-SHA256签名（secret非空时在请求头携带时间戳和签名）
type WebhookNotifier struct {
	WebhookURL string
	Secret     string
}

// NewWebhookNotifier 创建webhook告警通知器
func NewWebhookNotifier(webhookURL, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		WebhookURL: webhookURL,
		Secret:     secret,
	}
}

// SendAlert 发送webhook告警
func (n *WebhookNotifier) SendAlert(title, content string) error {
	message := map[string]interface{}{
		"title":     title,
		"content":   content,
		"timestamp": time.Now().Format("2006-01-02 15:04:05"),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, n.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if n.Secret != "" {
		timestamp := fmt.Sprintf("%d", time.Now().Unix())
		req.Header.Set("X-Timestamp", timestamp)
		req.Header.Set("X-Signature", n.genSign(timestamp, payload))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// genSign 生成HMAC-SHA256签名
func (n *WebhookNotifier) genSign(timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(n.Secret))
	mac.Write([]byte(timestamp))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// InitFromSettings 从设置表读取webhook配置并初始化通知管理器
func InitFromSettings(db *gorm.DB) *Manager {
	manager := NewManager(db)

	var settings []model.Setting
	if err := db.Where("category = ?", model.CategoryNotification).Find(&settings).Error; err != nil {
		logger.Warnf("Failed to load notification settings: %v", err)
		return manager
	}

	var webhookURL, webhookSecret string
	for _, s := range settings {
		switch s.Key {
		case "notification_webhook_url":
			webhookURL = s.Value
		case "notification_webhook_secret":
			webhookSecret = s.Value
		}
	}

	if webhookURL != "" {
		manager.AddNotifier(NewWebhookNotifier(webhookURL, webhookSecret))
		logger.Infof("Webhook alert notifier configured")
	}

	return manager
}
