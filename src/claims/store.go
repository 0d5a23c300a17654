package claims

import (
	"context"
	"errors"

	"github.com/reunite-app/reunite/src/types"
	"gorm.io/gorm"
)

// Sentinel errors the service maps onto its client-facing taxonomy.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateClaim = errors.New("duplicate claim")
)

// Store is the persistence surface the lifecycle manager needs. The gorm
// implementation is the production one; tests use an in-memory fake that
// enforces the same (post, claimant) uniqueness invariant.
type Store interface {
	GetPost(ctx context.Context, id uint64) (*types.Post, error)
	ClaimExists(ctx context.Context, postID, claimantID uint64) (bool, error)
	CreateClaim(ctx context.Context, claim *types.Claim) error
	GetClaim(ctx context.Context, id uint64) (*types.Claim, error)
	SetStatus(ctx context.Context, claimID uint64, status string, entry *types.AuditEntry) error
	DeleteClaim(ctx context.Context, id uint64) error
	ListByVerifier(ctx context.Context, verifierID uint64) ([]types.Claim, error)
	ListByClaimant(ctx context.Context, claimantID uint64) ([]types.Claim, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetPost(ctx context.Context, id uint64) (*types.Post, error) {
	var post types.Post
	err := s.db.WithContext(ctx).Preload("SecurityQuestions").First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *GormStore) ClaimExists(ctx context.Context, postID, claimantID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&types.Claim{}).
		Where("post_id = ? AND claimant_id = ?", postID, claimantID).
		Count(&count).Error
	return count > 0, err
}

// CreateClaim persists the claim together with its answers and seeded
// timeline. The unique index on (post_id, claimant_id) is what actually
// closes the race between concurrent submissions; application-level checks
// are only a fast path.
func (s *GormStore) CreateClaim(ctx context.Context, claim *types.Claim) error {
	err := s.db.WithContext(ctx).Create(claim).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateClaim
	}
	return err
}

func (s *GormStore) GetClaim(ctx context.Context, id uint64) (*types.Claim, error) {
	var claim types.Claim
	err := s.db.WithContext(ctx).
		Preload("Answers").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&claim, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (s *GormStore) SetStatus(ctx context.Context, claimID uint64, status string, entry *types.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.Claim{}).Where("id = ?", claimID).Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		entry.ClaimID = claimID
		return tx.Create(entry).Error
	})
}

// DeleteClaim hard-deletes the claim with its answers and timeline.
func (s *GormStore) DeleteClaim(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("claim_id = ?", id).Delete(&types.ClaimAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("claim_id = ?", id).Delete(&types.AuditEntry{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&types.Claim{}, id).Error
	})
}

func (s *GormStore) ListByVerifier(ctx context.Context, verifierID uint64) ([]types.Claim, error) {
	var out []types.Claim
	err := s.db.WithContext(ctx).
		Preload("Answers").Preload("Timeline").
		Where("verifier_id = ?", verifierID).
		Order("created_at desc").Find(&out).Error
	return out, err
}

func (s *GormStore) ListByClaimant(ctx context.Context, claimantID uint64) ([]types.Claim, error) {
	var out []types.Claim
	err := s.db.WithContext(ctx).
		Preload("Answers").Preload("Timeline").
		Where("claimant_id = ?", claimantID).
		Order("created_at desc").Find(&out).Error
	return out, err
}
