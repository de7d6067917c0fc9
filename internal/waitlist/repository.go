package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Repository interface defines the contract for waitlist data operations.
// The Redis ZSet orders the queue by join time, so ZRank yields gap-free
// positions no matter how many members have left.
type Repository interface {
	// Queue operations (Redis)
	AddToQueue(ctx context.Context, eventID, userID uuid.UUID, joinedAt time.Time) error
	RemoveFromQueue(ctx context.Context, eventID, userID uuid.UUID) error
	GetRank(ctx context.Context, eventID, userID uuid.UUID) (int64, error)
	GetQueueLength(ctx context.Context, eventID uuid.UUID) (int64, error)
	NextInQueue(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error)

	// Entry operations (Postgres)
	CreateEntry(ctx context.Context, entry *WaitlistEntry) error
	UpdateEntry(ctx context.Context, entry *WaitlistEntry) error
	GetEntry(ctx context.Context, eventID, userID uuid.UUID) (*WaitlistEntry, error)
	GetExpiredOffers(ctx context.Context, cutoff time.Time, limit int) ([]WaitlistEntry, error)
}

// repository implements the Repository interface
type repository struct {
	db     *gorm.DB
	redis  *redis.Client
	keyTTL time.Duration
}

// NewRepository creates a new waitlist repository
func NewRepository(db *gorm.DB, redisClient *redis.Client, keyTTL time.Duration) Repository {
	return &repository{
		db:     db,
		redis:  redisClient,
		keyTTL: keyTTL,
	}
}

// AddToQueue appends the user to the event queue. The score is the join
// timestamp, ties are impossible at nanosecond resolution in practice and
// would only reorder two simultaneous joiners.
func (r *repository) AddToQueue(ctx context.Context, eventID, userID uuid.UUID, joinedAt time.Time) error {
	queueKey := GetQueueKey(eventID)

	added, err := r.redis.ZAddNX(ctx, queueKey, redis.Z{
		Score:  float64(joinedAt.UnixNano()),
		Member: userID.String(),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add user to waitlist queue: %w", err)
	}
	if added == 0 {
		return ErrAlreadyWaitlisted
	}

	r.redis.Expire(ctx, queueKey, r.keyTTL)
	return nil
}

func (r *repository) RemoveFromQueue(ctx context.Context, eventID, userID uuid.UUID) error {
	removed, err := r.redis.ZRem(ctx, GetQueueKey(eventID), userID.String()).Result()
	if err != nil {
		return fmt.Errorf("failed to remove user from waitlist queue: %w", err)
	}
	if removed == 0 {
		return ErrNotOnWaitlist
	}
	return nil
}

// GetRank returns the zero-based rank of the user in the event queue.
func (r *repository) GetRank(ctx context.Context, eventID, userID uuid.UUID) (int64, error) {
	rank, err := r.redis.ZRank(ctx, GetQueueKey(eventID), userID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotOnWaitlist
		}
		return 0, fmt.Errorf("failed to read waitlist rank: %w", err)
	}
	return rank, nil
}

func (r *repository) GetQueueLength(ctx context.Context, eventID uuid.UUID) (int64, error) {
	length, err := r.redis.ZCard(ctx, GetQueueKey(eventID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read waitlist length: %w", err)
	}
	return length, nil
}

// NextInQueue returns the user at the head of the queue.
func (r *repository) NextInQueue(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error) {
	members, err := r.redis.ZRange(ctx, GetQueueKey(eventID), 0, 0).Result()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to peek waitlist queue: %w", err)
	}
	if len(members) == 0 {
		return uuid.Nil, ErrNotOnWaitlist
	}

	userID, err := uuid.Parse(members[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt member in waitlist queue: %w", err)
	}
	return userID, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *WaitlistEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) UpdateEntry(ctx context.Context, entry *WaitlistEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *repository) GetEntry(ctx context.Context, eventID, userID uuid.UUID) (*WaitlistEntry, error) {
	var entry WaitlistEntry
	err := r.db.WithContext(ctx).
		First(&entry, "event_id = ? AND user_id = ?", eventID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotOnWaitlist
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) GetExpiredOffers(ctx context.Context, cutoff time.Time, limit int) ([]WaitlistEntry, error) {
	var expired []WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("status = ? AND offer_expires_at < ?", StatusOffered, cutoff).
		Order("offer_expires_at ASC").
		Limit(limit).
		Find(&expired).Error
	return expired, err
}
