package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "pikpak.events"
	// 管理界面里显示的连接名
	ConnectionName = "pikpakhelper"
)

// 路由键
const (
	RoutingKeyEmailsExtracted  = "emails.extracted"
	RoutingKeyAccountActivated = "account.activated"
)

func dialConfig() amqp091.Config {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName(ConnectionName)
	return amqp091.Config{
		Heartbeat:  10 * time.Second,
		Locale:     "en_US",
		Properties: props,
		Dial:       amqp091.DefaultDial(5 * time.Second),
	}
}

// NewConnection dials RabbitMQ with a 5s connect timeout and a named client connection.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.DialConfig(url, dialConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange 声明事件 exchange（topic，持久化）
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(ExchangeName, amqp091.ExchangeTopic, true, false, false, false, nil)
}
