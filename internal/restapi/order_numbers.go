package restapi

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Order numbers are a millisecond timestamp plus six random digits, prefixed
// per kind: MGKW for the merchant order number, SN for the serial number.
const (
	merchantOrderPrefix = "MGKW"
	serialNoPrefix      = "SN"
)

func randomDigits(n int) string {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			panic(fmt.Sprintf("reading random digit: %v", err))
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits)
}

func newOrderNumber(prefix string, now time.Time) string {
	return prefix + now.Format("20060102150405") +
		fmt.Sprintf("%03d", now.Nanosecond()/1e6) + randomDigits(6)
}

func NewMerchantOrderNo(now time.Time) string {
	return newOrderNumber(merchantOrderPrefix, now)
}

func NewSerialNo(now time.Time) string {
	return newOrderNumber(serialNoPrefix, now)
}
