package models

import (
	"context"

	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
)

// first find in redis, then in db, cache result
// (may return RecordNotFound error)
func GetResource[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}

	db := config.GetDB()
	result, err = utils.FetchModel[T](db.WithContext(ctx), id, associations...)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[T](result, id); err != nil {
		return nil, err
	}
	return result, nil
}

// fetch directly from db, bypassing the cache
func GetResourceFromDb[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	db := config.GetDB()
	return utils.FetchModel[T](db.WithContext(ctx), id, associations...)
}

func ListAllResource[T any](ctx context.Context, orders ...string) ([]*T, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	for _, order := range orders {
		dbCtx = dbCtx.Order(order)
	}
	var results []*T
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func invalidateCache[T any](ids ...int) func() {
	return func() {
		if err := utils.RemoveRedisItem[T](ids...); err != nil {
			config.LogError(config.GetLogger(), "generics.go", "invalidateCache", "removing cached "+utils.GetTypeName[T](), ids, err)
		}
	}
}
