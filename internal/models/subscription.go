// Package models содержит доменные структуры, описывающие отслеживаемые
// подписки пользователя, а также вспомогательные типы для приёма данных
// из JSON-запросов.
package models

import (
	"time"

	"github.com/magabrotheeeer/subtrack/internal/lib/billingcycle"
)

// DateLayout формат дат во входящих запросах.
const DateLayout = "02-01-2006"

// Entry представляет собой основную модель отслеживаемой подписки,
// используемую в бизнес-логике и хранилище.
type Entry struct {
	ID              int                `json:"id"`
	ServiceName     string             `json:"service_name"`
	Price           int64              `json:"price"` // Цена одного списания в копейках
	Username        string             `json:"username"`
	UserUID         string             `json:"user_uid"`
	StartDate       time.Time          `json:"start_date"`
	Cycle           billingcycle.Cycle `json:"cycle"`
	RepeatEvery     int                `json:"repeat_every"` // Списание раз в N периодов
	NextBillingDate time.Time          `json:"next_billing_date"`
	AutoRenew       bool               `json:"auto_renew"`
	IsActive        bool               `json:"is_active"`
}

// DummyEntry используется для приёма данных из JSON-запроса,
// прежде чем конвертировать их в Entry.
// Даты приходят строками в формате 02-01-2006.
type DummyEntry struct {
	ServiceName     string `json:"service_name" validate:"required"`
	Price           int64  `json:"price" validate:"required,gt=0"`
	StartDate       string `json:"start_date" validate:"required"`
	Cycle           string `json:"cycle" validate:"required,oneof=daily weekly monthly yearly"`
	RepeatEvery     int    `json:"repeat_every" validate:"omitempty,gte=1"`
	NextBillingDate string `json:"next_billing_date,omitempty"` // Явная дата следующего списания (опционально)
	AutoRenew       *bool  `json:"auto_renew,omitempty"`
}

// EntryInfo данные для напоминания о предстоящем списании.
type EntryInfo struct {
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	ServiceName     string    `json:"service_name"`
	NextBillingDate time.Time `json:"next_billing_date"`
	Price           int64     `json:"price"`
}

// Charge одно списание в календаре.
type Charge struct {
	SubscriptionID int       `json:"subscription_id"`
	ServiceName    string    `json:"service_name"`
	Date           time.Time `json:"date"`
	Price          int64     `json:"price"`
}

// Calendar список списаний за период и их сумма.
type Calendar struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Charges []Charge  `json:"charges"`
	Total   int64     `json:"total"`
}
