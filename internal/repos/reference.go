package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/types"
)

type ReferenceRepo interface {
	// FindExact matches the normalized description key or the SKU verbatim,
	// optionally restricted to given sources. Returns nil, nil when no row.
	FindExact(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, descriptionKey, sku string, sources []string) (*types.ReferenceEntry, error)
	// FindContains is the fuzzy fallback: the stored key contains the probe or
	// vice versa. Returns nil, nil when no row.
	FindContains(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, descriptionKey string, sources []string) (*types.ReferenceEntry, error)
	Upsert(ctx context.Context, tx *gorm.DB, entry *types.ReferenceEntry) (*types.ReferenceEntry, error)
}

// NormalizeKey folds a free-text description into the lookup key stored on
// reference entries.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

type referenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReferenceRepo(db *gorm.DB, baseLog *logger.Logger) ReferenceRepo {
	return &referenceRepo{db: db, log: baseLog.With("repo", "ReferenceRepo")}
}

func (r *referenceRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *referenceRepo) FindExact(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, descriptionKey, sku string, sources []string) (*types.ReferenceEntry, error) {
	q := r.conn(tx).WithContext(ctx).
		Where("org_id = ?", orgID)
	if sku != "" {
		q = q.Where("description_key = ? OR sku = ?", descriptionKey, sku)
	} else {
		q = q.Where("description_key = ?", descriptionKey)
	}
	if len(sources) > 0 {
		q = q.Where("source IN ?", sources)
	}
	var result types.ReferenceEntry
	if err := q.Order("times_validated DESC").First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *referenceRepo) FindContains(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, descriptionKey string, sources []string) (*types.ReferenceEntry, error) {
	if descriptionKey == "" {
		return nil, nil
	}
	q := r.conn(tx).WithContext(ctx).
		Where("org_id = ?", orgID).
		Where("description_key LIKE ? OR ? LIKE ('%' || description_key || '%')", "%"+descriptionKey+"%", descriptionKey)
	if len(sources) > 0 {
		q = q.Where("source IN ?", sources)
	}
	var result types.ReferenceEntry
	if err := q.Order("times_validated DESC").First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// Upsert merges on (org, description key): a repeat correction bumps the
// validation counter instead of inserting a duplicate row.
func (r *referenceRepo) Upsert(ctx context.Context, tx *gorm.DB, entry *types.ReferenceEntry) (*types.ReferenceEntry, error) {
	conn := r.conn(tx).WithContext(ctx)
	now := time.Now()

	var existing types.ReferenceEntry
	err := conn.
		Where("org_id = ? AND description_key = ?", entry.OrgID, entry.DescriptionKey).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		entry.TimesValidated = 1
		entry.LastValidatedAt = &now
		if err := conn.Create(entry).Error; err != nil {
			return nil, err
		}
		return entry, nil
	}

	updates := map[string]interface{}{
		"source":            entry.Source,
		"times_validated":   existing.TimesValidated + 1,
		"last_validated_at": now,
		"updated_at":        now,
	}
	if entry.HSCode != "" {
		updates["hs_code"] = entry.HSCode
	}
	if entry.NetWeightKg > 0 {
		updates["net_weight_kg"] = entry.NetWeightKg
	}
	if entry.SKU != "" {
		updates["sku"] = entry.SKU
	}
	if err := conn.Model(&types.ReferenceEntry{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.FindExact(ctx, tx, entry.OrgID, entry.DescriptionKey, "", nil)
}
