package dto

import "errors"

var (
	ErrUpstream            = errors.New("payment provider request failed")
	ErrBadSignature        = errors.New("invalid IPN signature")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPackageNotFound     = errors.New("credit package not found")
)
