package config

import (
	"os"
	"strings"
	"time"
)

// InventoryLockRequired makes every mutation fail when the redis stock lock cannot be used.
// Without it, mutations rely on database row locks alone.
//
// Set via env:
// - INVENTORY_LOCK_REQUIRED=true
func InventoryLockRequired() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("INVENTORY_LOCK_REQUIRED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// InventoryLockTTL is the expiry of the stock lock. The holder refreshes it every half TTL,
// so it only bounds how long a crashed writer keeps other writers out.
//
// Set via env:
// - INVENTORY_LOCK_TTL_SECONDS (default 30)
func InventoryLockTTL() time.Duration {
	seconds := IntFromEnv("INVENTORY_LOCK_TTL_SECONDS", 30)
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

// DefaultPhoneRegion is the region used to parse supplier contact numbers without a country prefix.
//
// Set via env:
// - DEFAULT_PHONE_REGION (default NP)
func DefaultPhoneRegion() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_PHONE_REGION")))
	if v == "" {
		return "NP"
	}
	return v
}
