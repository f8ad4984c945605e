package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const templatesCollection = "notification_templates"

const (
	maxCacheSize    = 1000
	maxCacheKeyLen  = 512
	maxTemplateSize = 1024 * 1024 // 1MB title+body ceiling
)

// TemplateCache holds cached templates with size and TTL controls
type TemplateCache struct {
	templates map[string]*domain.Template
	entries   map[string]time.Time
	mu        sync.RWMutex
	ttl       time.Duration
	maxSize   int
}

// NewTemplateCache creates a new template cache with size limits
func NewTemplateCache(ttl time.Duration) *TemplateCache {
	return &TemplateCache{
		templates: make(map[string]*domain.Template),
		entries:   make(map[string]time.Time),
		ttl:       ttl,
		maxSize:   maxCacheSize,
	}
}

// validateCacheKey rejects keys that could not have come from a template name
func validateCacheKey(key string) error {
	if len(key) == 0 {
		return errors.New("cache key cannot be empty")
	}
	if len(key) > maxCacheKeyLen {
		return errors.New("cache key exceeds maximum length")
	}
	if strings.ContainsAny(key, "\x00\n\r") {
		return errors.New("cache key contains invalid characters")
	}
	return nil
}

// Get retrieves a template from cache
func (c *TemplateCache) Get(key string) (*domain.Template, bool) {
	if err := validateCacheKey(key); err != nil {
		return nil, false
	}

	c.mu.RLock()
	template, exists := c.templates[key]
	entryTime, hasEntry := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if !hasEntry || time.Since(entryTime) > c.ttl {
		c.mu.Lock()
		delete(c.templates, key)
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return template, true
}

// Set stores a template in cache
func (c *TemplateCache) Set(key string, template *domain.Template) error {
	if err := validateCacheKey(key); err != nil {
		return err
	}

	if template != nil {
		templateSize := len(template.TitleTemplate) + len(template.BodyTemplate)
		if templateSize > maxTemplateSize {
			return errors.New("template size exceeds maximum allowed size")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.templates) >= c.maxSize && c.templates[key] == nil {
		c.evictOldest()
	}

	c.templates[key] = template
	c.entries[key] = time.Now()
	return nil
}

// evictOldest removes the oldest entry (must be called with lock held)
func (c *TemplateCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entryTime := range c.entries {
		if first || entryTime.Before(oldestTime) {
			oldestKey = key
			oldestTime = entryTime
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.templates, oldestKey)
		delete(c.entries, oldestKey)
	}
}

// Invalidate removes a template from cache
func (c *TemplateCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.templates, key)
	delete(c.entries, key)
}

// TemplateRepository handles template data operations
type TemplateRepository struct {
	client *mongodb.MongoClient
	cache  *TemplateCache
}

// NewTemplateRepository creates a new template repository with caching
func NewTemplateRepository(client *mongodb.MongoClient) *TemplateRepository {
	return &TemplateRepository{
		client: client,
		cache:  NewTemplateCache(5 * time.Minute),
	}
}

// EnsureIndexes creates necessary indexes
func (r *TemplateRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_idx").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}},
			Options: options.Index().SetName("type_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, templatesCollection, indexes)
}

// Upsert creates a template by name or updates the existing one. Creation is
// idempotent by name: re-creating an existing name updates the resource
// instead of producing a duplicate-name conflict.
func (r *TemplateRepository) Upsert(ctx context.Context, template *domain.Template) error {
	now := time.Now()
	filter := bson.M{"name": template.Name}
	update := bson.M{
		"$set": bson.M{
			"type":             template.Type,
			"title_template":   template.TitleTemplate,
			"body_template":    template.BodyTemplate,
			"channels":         template.Channels,
			"default_priority": template.DefaultPriority,
			"variables":        template.Variables,
			"is_active":        true,
			"updated_at":       now,
		},
		"$inc": bson.M{"version": 1},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"name":       template.Name,
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := r.client.Collection(templatesCollection).UpdateOne(ctx, filter, update, opts); err != nil {
		return err
	}

	r.cache.Invalidate("name:" + template.Name)
	return nil
}

// FindByName finds an active template by name with caching
func (r *TemplateRepository) FindByName(ctx context.Context, name string) (*domain.Template, error) {
	cacheKey := "name:" + name
	if template, found := r.cache.Get(cacheKey); found {
		return template, nil
	}

	var template domain.Template
	filter := bson.M{"name": name, "is_active": true}
	err := r.client.Collection(templatesCollection).FindOne(ctx, filter).Decode(&template)
	if err == mongo.ErrNoDocuments {
		return nil, domain.TemplateNotFoundError(name)
	}
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(cacheKey, &template)

	return &template, nil
}

// List returns all templates, including deactivated ones
func (r *TemplateRepository) List(ctx context.Context) ([]*domain.Template, error) {
	opts := options.Find().SetSort(bson.M{"name": 1})
	cursor, err := r.client.Collection(templatesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []*domain.Template
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}

	return templates, nil
}

// Deactivate soft-deactivates a template by name. Templates referenced by
// delivery history are never hard-deleted.
func (r *TemplateRepository) Deactivate(ctx context.Context, name string) error {
	filter := bson.M{"name": name}
	update := bson.M{
		"$set": bson.M{
			"is_active":  false,
			"updated_at": time.Now(),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.client.Collection(templatesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.TemplateNotFoundError(name)
	}

	r.cache.Invalidate("name:" + name)
	return nil
}
