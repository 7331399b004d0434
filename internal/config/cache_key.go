package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// HostedSessionKey returns the cache key holding the active token ID of a hosted session
func (r *CacheKeyStruct) HostedSessionKey(sessionID string) string {
	return fmt.Sprintf("quiz:session:%s:token", sessionID)
}

// TestCatalogKey returns the cache key for the quiz API test catalog
func (r *CacheKeyStruct) TestCatalogKey() string {
	return "quiz:catalog:tests"
}

// ThemeKey returns the cache key for a client's theme preference
func (r *CacheKeyStruct) ThemeKey(clientID string) string {
	return fmt.Sprintf("quiz:client:%s:theme", clientID)
}

var CacheKey = NewCacheKeyStruct()
