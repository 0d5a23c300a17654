package types

import (
	"time"

	"gorm.io/gorm"
)

// Claim lifecycle states. PENDING and MANUAL_REVIEW have no producing
// transition yet; they stay valid stored values for the staged flow.
const (
	ClaimStatusPending               = "PENDING"
	ClaimStatusVerificationSubmitted = "VERIFICATION_SUBMITTED"
	ClaimStatusAccepted              = "ACCEPTED"
	ClaimStatusRejected              = "REJECTED"
	ClaimStatusManualReview          = "MANUAL_REVIEW"
)

// Audit timeline actions.
const (
	AuditClaimCreated        = "CLAIM_CREATED"
	AuditEvidenceSubmitted   = "EVIDENCE_SUBMITTED"
	AuditScoreCalculated     = "SCORE_CALCULATED"
	AuditAccepted            = "ACCEPTED"
	AuditRejected            = "REJECTED"
	AuditManualReview        = "MANUAL_REVIEW"
	AuditModerationRequested = "MODERATION_REQUESTED"
)

// Lost/found posts. Owned by the hub/post service; this engine only reads them.
type Post struct {
	ID          uint64 `gorm:"primaryKey"`
	AuthorID    uint64 `gorm:"index;not null"`
	Kind        string `gorm:"size:8;not null"` // LOST or FOUND
	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Tags        string `gorm:"size:512"` // comma separated
	HubID       uint64 `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`

	SecurityQuestions []SecurityQuestion `gorm:"foreignKey:PostID"`
}

// Poster-authored ownership challenge. Answer is private and must never
// be serialized to clients.
type SecurityQuestion struct {
	ID       uint64 `gorm:"primaryKey"`
	PostID   uint64 `gorm:"index;not null"`
	Question string `gorm:"size:512;not null"`
	Answer   string `gorm:"size:512;not null" json:"-"`
	Required bool   `gorm:"default:false"`
	Position uint8  `gorm:"default:0"` // max 3 per post, enforced by the post service
}

// Claim is a user's assertion of ownership over a post's item.
// VerifierID is a snapshot of the post author at creation time; decisions
// stay with the original verifier even if the post is later transferred.
type Claim struct {
	ID         uint64 `gorm:"primaryKey"`
	PostID     uint64 `gorm:"not null;uniqueIndex:idx_post_claimant"`
	ClaimantID uint64 `gorm:"not null;uniqueIndex:idx_post_claimant"`
	VerifierID uint64 `gorm:"index;not null"`
	Status     string `gorm:"size:32;not null"`

	// VerificationData, written once at submission. Only the score fields
	// may be recomputed before the first reviewer decision.
	AdditionalDescription string `gorm:"type:text"`
	SerialNumber          string `gorm:"size:128"`
	ImageProofURL         string `gorm:"size:512"`
	SystemTrustScore      int    `gorm:"not null;default:0"`
	SystemTrustRationale  string `gorm:"type:text"`
	DescriptionScore      *int

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Answers  []ClaimAnswer `gorm:"foreignKey:ClaimID;constraint:OnDelete:CASCADE"`
	Timeline []AuditEntry  `gorm:"foreignKey:ClaimID;constraint:OnDelete:CASCADE"`
}

// ClaimAnswer holds the claimant's answer to one security question, at most
// one per question id. Score is filled by the AI scorer when available.
type ClaimAnswer struct {
	ID         uint64 `gorm:"primaryKey"`
	ClaimID    uint64 `gorm:"not null;uniqueIndex:idx_claim_question"`
	QuestionID uint64 `gorm:"not null;uniqueIndex:idx_claim_question"`
	Answer     string `gorm:"size:1024"`
	Score      *int
}

// AuditEntry is one immutable event on a claim's timeline. Rows are only
// ever appended, never edited or reordered.
type AuditEntry struct {
	ID        uint64 `gorm:"primaryKey"`
	ClaimID   uint64 `gorm:"index;not null"`
	Action    string `gorm:"size:32;not null"`
	ActorID   uint64 `gorm:"not null"`
	Detail    string `gorm:"size:512"`
	CreatedAt time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}
