// Package proration оценивает стоимость смены тарифа до подтверждения.
//
// Оценка носит справочный характер: окончательную сумму всегда считает
// платёжный провайдер при оформлении. Пакет не обращается к внешним
// сервисам и не хранит состояние.
package proration

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PlanCycle период оплаты тарифа сервиса.
type PlanCycle string

const (
	CycleFree     PlanCycle = "free"
	CycleMonthly  PlanCycle = "monthly"
	CycleYearly   PlanCycle = "yearly"
	CycleLifetime PlanCycle = "lifetime"
)

// UpgradeType тип перехода на новый тариф.
type UpgradeType string

const (
	// NewSubscription платной подписки нет, оформляется новая.
	NewSubscription UpgradeType = "new_subscription"
	// PlanChange смена действующей подписки с перерасчётом.
	PlanChange UpgradeType = "plan_change"
	// ImmediateCharge разовая покупка пожизненного тарифа.
	ImmediateCharge UpgradeType = "immediate_charge"
)

// Приближённая длина периода в днях. Календарная длина не используется:
// от неё зависят суммы, которые видит пользователь.
const (
	monthlyCycleDays = 30
	yearlyCycleDays  = 365
)

var (
	// ErrIneligible с пожизненного тарифа переход невозможен.
	ErrIneligible = errors.New("cannot upgrade from lifetime plan")
	// ErrTargetNotPurchasable целевой тариф нельзя купить (бесплатный или неизвестный период).
	ErrTargetNotPurchasable = errors.New("target plan is not purchasable")
)

// Plan снимок тарифа.
type Plan struct {
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Cycle      PlanCycle `json:"billing_cycle"`
}

// Current снимок текущей подписки пользователя. ExpiresAt == nil для
// бесплатного и пожизненного тарифов.
type Current struct {
	Plan      Plan       `json:"plan"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Preview результат оценки.
type Preview struct {
	UpgradeType    UpgradeType `json:"upgrade_type"`
	CreditCents    int64       `json:"credit_cents"`
	AmountDueCents int64       `json:"amount_due_cents"`
	DaysRemaining  int         `json:"days_remaining"`
	IsEstimate     bool        `json:"is_estimate"`
}

// Recurring сообщает, является ли период платным регулярным.
func (c PlanCycle) Recurring() bool {
	return c == CycleMonthly || c == CycleYearly
}

// Valid сообщает, входит ли значение в перечисление.
func (c PlanCycle) Valid() bool {
	switch c {
	case CycleFree, CycleMonthly, CycleYearly, CycleLifetime:
		return true
	}
	return false
}

// Classify определяет тип перехода с current на target.
// current == nil означает отсутствие записи о подписке.
func Classify(current *Current, target Plan) (UpgradeType, error) {
	if current != nil && current.Plan.Cycle == CycleLifetime {
		return "", ErrIneligible
	}
	if !target.Cycle.Recurring() && target.Cycle != CycleLifetime {
		return "", fmt.Errorf("%w: %q", ErrTargetNotPurchasable, string(target.Cycle))
	}
	if current == nil || !current.Plan.Cycle.Recurring() {
		return NewSubscription, nil
	}
	if target.Cycle == CycleLifetime {
		return ImmediateCharge, nil
	}
	return PlanChange, nil
}

// Estimate считает предварительную стоимость перехода на момент now.
func Estimate(current *Current, target Plan, now time.Time) (Preview, error) {
	upgradeType, err := Classify(current, target)
	if err != nil {
		return Preview{}, err
	}

	if upgradeType != PlanChange {
		return Preview{
			UpgradeType:    upgradeType,
			AmountDueCents: nonNegative(target.PriceCents),
		}, nil
	}

	days := DaysRemaining(current.ExpiresAt, now)
	credit := Credit(current.Plan, days)
	return Preview{
		UpgradeType:    PlanChange,
		CreditCents:    credit,
		AmountDueCents: nonNegative(target.PriceCents - credit),
		DaysRemaining:  days,
		IsEstimate:     true,
	}, nil
}

// DaysRemaining количество оставшихся дней, округлённое вверх.
func DaysRemaining(expiresAt *time.Time, now time.Time) int {
	if expiresAt == nil || !expiresAt.After(now) {
		return 0
	}
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}

// Credit стоимость неиспользованных дней текущего тарифа в копейках/центах.
// price*days/cycleDays округляется до целого, дробные центы не возвращаются.
func Credit(plan Plan, daysRemaining int) int64 {
	if daysRemaining <= 0 || plan.PriceCents <= 0 {
		return 0
	}
	cycleDays := cycleLengthDays(plan.Cycle)
	if cycleDays == 0 {
		return 0
	}
	return decimal.NewFromInt(plan.PriceCents).
		Mul(decimal.NewFromInt(int64(daysRemaining))).
		Div(decimal.NewFromInt(cycleDays)).
		Round(0).
		IntPart()
}

func cycleLengthDays(c PlanCycle) int64 {
	switch c {
	case CycleMonthly:
		return monthlyCycleDays
	case CycleYearly:
		return yearlyCycleDays
	}
	return 0
}

func nonNegative(v int64) int64 {
	return max(v, 0)
}
