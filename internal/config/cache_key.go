package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamCatalogKey returns the cache key for an exam with its questions (answer key included).
func (r *CacheKeyStruct) ExamCatalogKey(examID string) string {
	return fmt.Sprintf("exam:%s:catalog", examID)
}

// ExamSlugKey maps an exam slug to its id.
func (r *CacheKeyStruct) ExamSlugKey(slug string) string {
	return fmt.Sprintf("exam:slug:%s", slug)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
