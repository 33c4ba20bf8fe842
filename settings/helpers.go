package settings

import (
	"net/url"
	"strconv"

	"github.com/ordishs/gocore"
	"github.com/shieldnode/shieldnode/util/bytesize"
)

func getString(key, defaultValue string) string {
	value, found := gocore.Config().Get(key)
	if !found {
		return defaultValue
	}

	return value
}

func getInt(key string, defaultValue int) int {
	value, found := gocore.Config().GetInt(key)
	if !found {
		return defaultValue
	}

	return value
}

func getInt64(key string, defaultValue int64) int64 {
	value, found := gocore.Config().Get(key)
	if !found {
		return defaultValue
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getFloat64(key string, defaultValue float64) float64 {
	value, found := gocore.Config().Get(key)
	if !found {
		return defaultValue
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getURL(key, defaultValue string) *url.URL {
	value, _, _ := gocore.Config().GetURL(key, defaultValue)

	return value
}

func getBool(key string, defaultValue bool) bool {
	return gocore.Config().GetBool(key, defaultValue)
}

func getByteSize(key string, defaultValue bytesize.ByteSize) bytesize.ByteSize {
	value, found := gocore.Config().Get(key)
	if !found {
		return defaultValue
	}

	size, err := bytesize.Parse(value)
	if err != nil {
		return defaultValue
	}

	return size
}
