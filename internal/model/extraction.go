package model

import "time"

// EmailsExtractedEvent 提取成功后发布到 MQ 的事件
type EmailsExtractedEvent struct {
	CardHash    string    `json:"card_hash"`
	EmailType   string    `json:"email_type"`
	Count       int       `json:"count"`
	Retries     int       `json:"retries"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// AccountActivatedEvent 激活成功后发布
type AccountActivatedEvent struct {
	Email       string    `json:"email"`
	ActivatedAt time.Time `json:"activated_at"`
}
