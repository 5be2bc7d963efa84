package services

import (
	"context"
	"fmt"
	"strconv"

	"splitperfect/internal/cache"
	"splitperfect/internal/core"
	"splitperfect/internal/engine"
	"splitperfect/internal/log"
	"splitperfect/internal/metrics"
	"splitperfect/internal/storage"
)

// RoomService handles room lifecycle, membership and settlement
// summaries. Summaries are cached per room and invalidated on every
// write that changes the underlying data.
type RoomService struct {
	store     storage.Store
	summaries *cache.LRU[*engine.Summary]
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewRoomService(store storage.Store, summaries *cache.LRU[*engine.Summary], m *metrics.Metrics, logger *log.Logger) *RoomService {
	return &RoomService{
		store:     store,
		summaries: summaries,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentRoom),
	}
}

// Create makes a room with a fresh secret and enrolls the creator.
func (s *RoomService) Create(ctx context.Context, userID int64, name string) (*storage.RoomInfo, error) {
	room := &core.Room{
		Name:      name,
		Secret:    core.NewRoomSecret(),
		CreatedBy: userID,
	}
	if err := room.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	s.logger.InfoContext(ctx, "room created",
		log.FieldRoomID, room.ID,
		log.FieldUserID, userID,
		log.FieldOperation, log.OpCreate)
	return &storage.RoomInfo{Room: *room, MemberCount: 1}, nil
}

// Join enrolls the user in the room matching secret. Joining a room
// twice is an error, matching the API contract.
func (s *RoomService) Join(ctx context.Context, userID int64, secret string) (*storage.RoomInfo, error) {
	room, err := s.store.GetRoomBySecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddMember(ctx, room.ID, userID); err != nil {
		return nil, err
	}

	count, err := s.store.MemberCount(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	s.invalidateSummary(room.ID)

	s.logger.InfoContext(ctx, "member joined",
		log.FieldRoomID, room.ID,
		log.FieldUserID, userID,
		log.FieldOperation, log.OpJoin)
	return &storage.RoomInfo{Room: *room, MemberCount: count}, nil
}

// List returns every room the user belongs to.
func (s *RoomService) List(ctx context.Context, userID int64) ([]storage.RoomInfo, error) {
	return s.store.ListRoomsForUser(ctx, userID)
}

// Get returns a room and its members. Only members may look.
func (s *RoomService) Get(ctx context.Context, userID, roomID int64) (*core.Room, []core.User, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, nil, err
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	return room, members, nil
}

// Delete removes a room. Only the creator may delete it.
func (s *RoomService) Delete(ctx context.Context, userID, roomID int64) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != userID {
		return ErrNotCreator
	}
	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	s.invalidateSummary(roomID)

	s.logger.InfoContext(ctx, "room deleted",
		log.FieldRoomID, roomID,
		log.FieldUserID, userID,
		log.FieldOperation, log.OpDelete)
	return nil
}

// Summary computes the settlement report for a room, serving from the
// cache when the underlying data has not changed.
func (s *RoomService) Summary(ctx context.Context, userID, roomID int64) (*engine.Summary, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	key := summaryKey(roomID)
	if cached, ok := s.summaries.Get(key); ok {
		s.metrics.SummaryCacheHit()
		return cached, nil
	}
	s.metrics.SummaryCacheMiss()

	snapshot, err := s.store.RoomSnapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	summary, err := engine.BuildSummary(snapshot)
	if err != nil {
		return nil, fmt.Errorf("build summary for room %d: %w", roomID, err)
	}

	s.metrics.SummaryComputed(len(summary.Transactions))
	s.summaries.Set(key, summary)

	s.logger.InfoContext(ctx, "summary computed",
		log.FieldRoomID, roomID,
		log.FieldOperation, log.OpSummary,
		"transactions", len(summary.Transactions))
	return summary, nil
}

func (s *RoomService) requireMember(ctx context.Context, roomID, userID int64) error {
	member, err := s.store.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrForbidden
	}
	return nil
}

func (s *RoomService) invalidateSummary(roomID int64) {
	s.summaries.Invalidate(summaryKey(roomID))
}

func summaryKey(roomID int64) string {
	return strconv.FormatInt(roomID, 10)
}
