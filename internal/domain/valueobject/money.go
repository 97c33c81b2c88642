package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/pkg/apperror"
)

// Комиссия процессора: 2.9% + $0.30 от суммы с учётом комиссии платформы.
var (
	processorFeeRate  = decimal.NewFromFloat(0.029)
	processorFeeFixed = decimal.NewFromFloat(0.30)
	hundred           = decimal.NewFromInt(100)
)

// platformFeeRates — процент комиссии платформы по тарифу подписки плательщика.
var platformFeeRates = map[string]decimal.Decimal{
	models.SubscriptionTierFree:         decimal.NewFromFloat(10.0),
	models.SubscriptionTierProfessional: decimal.NewFromFloat(7.5),
	models.SubscriptionTierBusiness:     decimal.NewFromFloat(5.0),
}

// FeeQuote — детерминированный расчёт стоимости финансирования контракта.
// Все суммы в основных единицах валюты (доллары); в минорные единицы
// переводится только на границе с процессором.
type FeeQuote struct {
	ContractAmount decimal.Decimal
	PlatformRate   decimal.Decimal
	PlatformFee    decimal.Decimal
	ProcessorFee   decimal.Decimal
	TotalCharge    decimal.Decimal
}

// NewFeeQuote считает комиссии для контракта на сумму amount,
// по тарифу подписки плательщика на момент финансирования.
func NewFeeQuote(amount float64, subscriptionTier string) (FeeQuote, error) {
	if amount <= 0 {
		return FeeQuote{}, apperror.New(apperror.ErrCodeValidation, "сумма контракта должна быть положительной")
	}

	if subscriptionTier == "" {
		subscriptionTier = models.SubscriptionTierFree
	}
	rate, ok := platformFeeRates[subscriptionTier]
	if !ok {
		return FeeQuote{}, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("неизвестный тариф подписки %q", subscriptionTier))
	}

	contractAmount := decimal.NewFromFloat(amount)
	platformFee := contractAmount.Mul(rate).Div(hundred)
	subtotal := contractAmount.Add(platformFee)
	processorFee := subtotal.Mul(processorFeeRate).Add(processorFeeFixed)

	return FeeQuote{
		ContractAmount: contractAmount,
		PlatformRate:   rate,
		PlatformFee:    platformFee,
		ProcessorFee:   processorFee,
		TotalCharge:    subtotal.Add(processorFee),
	}, nil
}

// TotalChargeMinor возвращает итоговую сумму списания в минорных единицах.
func (q FeeQuote) TotalChargeMinor() int64 {
	return MinorUnits(q.TotalCharge)
}

// MinorUnits переводит сумму в минорные единицы (центы):
// round-half-up от value*100. Процессор принимает только целые центы.
func MinorUnits(amount decimal.Decimal) int64 {
	cents := amount.Mul(hundred)
	// Round у decimal — half away from zero; для неотрицательных сумм
	// это и есть round-half-up.
	return cents.Round(0).IntPart()
}

// MinorUnitsFloat — то же для float64 сумм из моделей.
func MinorUnitsFloat(amount float64) int64 {
	return MinorUnits(decimal.NewFromFloat(amount))
}
