package cache

import (
	"context"
	"strconv"

	"github.com/waimai-next/internal/constants"

	"github.com/redis/go-redis/v9"
)

// CourierGeoAdd 更新骑手位置索引
func CourierGeoAdd(ctx context.Context, courierID uint, lat, lon float64) error {
	if !Enabled() {
		return nil
	}
	return redisClient.GeoAdd(ctx, buildKey(constants.GeoKeyCouriers), &redis.GeoLocation{
		Name:      strconv.FormatUint(uint64(courierID), 10),
		Latitude:  lat,
		Longitude: lon,
	}).Err()
}

// CourierGeoRemove 从位置索引中移除骑手
func CourierGeoRemove(ctx context.Context, courierID uint) error {
	if !Enabled() {
		return nil
	}
	return redisClient.ZRem(ctx, buildKey(constants.GeoKeyCouriers),
		strconv.FormatUint(uint64(courierID), 10)).Err()
}

// CourierGeoSearch 查询半径范围内的骑手 ID
func CourierGeoSearch(ctx context.Context, lat, lon, radiusKm float64) ([]uint, error) {
	if !Enabled() {
		return nil, nil
	}
	locations, err := redisClient.GeoSearch(ctx, buildKey(constants.GeoKeyCouriers), &redis.GeoSearchQuery{
		Latitude:   lat,
		Longitude:  lon,
		Radius:     radiusKm,
		RadiusUnit: "km",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(locations))
	for _, name := range locations {
		id, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
