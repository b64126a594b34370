package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/stockroom/inventory_backend/config"
	"github.com/ttacon/libphonenumber"
)

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil
}

func NewTrue() *bool {
	b := true
	return &b
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// InventoryLock obtains the redis lock named lockType and returns its release func.
// Without redis the returned release is a no-op, unless INVENTORY_LOCK_REQUIRED is set.
// The lock is refreshed every half TTL until released; a failed refresh is logged and
// left to expire, after which another writer may obtain it.
func InventoryLock(ctx context.Context, lockType string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		if config.InventoryLockRequired() {
			err := errors.New("service not ready (redis lock not initialized)")
			config.LogError(logger, moduleName, functionName, "Redis lock not initialized", lockType, err)
			return nil, err
		}
		return func() {}, nil
	}

	ttl := config.InventoryLockTTL()
	lock, err := locker.Obtain(ctx, lockType, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain inventory lock", lockType, err)
		return nil, errors.New("could not obtain inventory lock")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining inventory lock", lockType, err)
		return nil, err
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := lock.Refresh(context.Background(), ttl, nil); err != nil {
					config.LogError(logger, moduleName, functionName, "Could not refresh inventory lock", lockType, err)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			_ = lock.Release(context.Background())
		})
	}, nil
}
