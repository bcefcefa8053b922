package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"swarm-backend/internal/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
)

// SwarmOptions holds the membership rules. Location is the timezone of
// Today, UTC when nil.
type SwarmOptions struct {
	MaxMembers    int
	InviteBaseURL string
	Location      *time.Location
}

// SwarmService handles swarm membership and swarm queries
type SwarmService struct {
	swarms        SwarmRepository
	users         UserRepository
	codes         *CodeGenerator
	maxMembers    int
	inviteBaseURL string
	loc           *time.Location
	events        *EventPublisher
	metrics       *Metrics
	now           func() time.Time
}

// NewSwarmService creates a new swarm service
func NewSwarmService(
	swarms SwarmRepository,
	users UserRepository,
	codes *CodeGenerator,
	opts SwarmOptions,
	events *EventPublisher,
	metrics *Metrics,
) *SwarmService {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &SwarmService{
		swarms:        swarms,
		users:         users,
		codes:         codes,
		maxMembers:    opts.MaxMembers,
		inviteBaseURL: strings.TrimRight(opts.InviteBaseURL, "/"),
		loc:           loc,
		events:        events,
		metrics:       metrics,
		now:           time.Now,
	}
}

// MaxMembers returns the member cap
func (s *SwarmService) MaxMembers() int {
	return s.maxMembers
}

// Today returns the current calendar date in the service's timezone
func (s *SwarmService) Today() time.Time {
	return models.DateOf(s.now(), s.loc)
}

// CreateSwarm creates a swarm founded by userID. The swarm row and the
// founder's membership are written together, and a code that loses a race on
// the unique index counts as a collision.
func (s *SwarmService) CreateSwarm(ctx context.Context, userID, name string) (swarm *models.Swarm, err error) {
	defer func() { s.metrics.membership("create", err) }()

	name, err = NormalizeName(name)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.InSwarm() {
		return nil, models.ErrAlreadyMember
	}

	swarm = &models.Swarm{
		ID:        uuid.New().String(),
		Name:      name,
		FounderID: userID,
		CreatedAt: s.now(),
	}

	_, err = s.codes.Generate(ctx, func(ctx context.Context, code string) (bool, error) {
		exists, err := s.swarms.CodeExists(ctx, code)
		if err != nil {
			return false, fmt.Errorf("failed to check code existence: %w", err)
		}
		if exists {
			return true, nil
		}

		swarm.InviteCode = code
		err = s.swarms.CreateWithFounder(ctx, swarm)
		if errors.Is(err, models.ErrCodeTaken) {
			return true, nil
		}
		return false, err
	})
	if err != nil {
		if errors.Is(err, models.ErrCodeExhausted) {
			log.Error().Str("user_id", userID).Int("attempts", s.codes.Attempts()).Msg("Invite code space exhausted")
		}
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("swarm_id", swarm.ID).
		Str("invite_code", swarm.InviteCode).
		Msg("Swarm created")

	return swarm, nil
}

// JoinSwarm adds userID to the swarm with the given invite code
func (s *SwarmService) JoinSwarm(ctx context.Context, userID, code string) (swarm *models.Swarm, err error) {
	defer func() { s.metrics.membership("join", err) }()

	code = NormalizeCode(code)
	if code == "" {
		return nil, models.ErrInvalidCode
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.InSwarm() {
		return nil, models.ErrAlreadyMember
	}

	swarm, err = s.swarms.AddMember(ctx, userID, code, s.maxMembers, s.now())
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("swarm_id", swarm.ID).
		Int("member_count", swarm.MemberCount).
		Msg("User joined swarm")

	s.events.Publish(ctx, swarm.ID, WSMessage{
		Type:   EventMemberJoined,
		UserID: userID,
		Data: map[string]interface{}{
			"name":         user.Name,
			"avatar_seed":  user.AvatarSeed,
			"member_count": swarm.MemberCount,
		},
	}, nil)

	return swarm, nil
}

// LeaveSwarm removes userID from their swarm. A departing founder hands the
// swarm to the earliest remaining joiner, and the last member to leave deletes
// it.
func (s *SwarmService) LeaveSwarm(ctx context.Context, userID string) (result *models.LeaveResult, err error) {
	defer func() { s.metrics.membership("leave", err) }()

	result, err = s.swarms.RemoveMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("swarm_id", result.SwarmID).
		Bool("deleted", result.Deleted).
		Str("new_founder_id", result.NewFounderID).
		Msg("User left swarm")

	if result.Deleted {
		return result, nil
	}

	s.events.Publish(ctx, result.SwarmID, WSMessage{
		Type:   EventMemberLeft,
		UserID: userID,
	}, nil)

	if result.NewFounderID != "" {
		s.events.Publish(ctx, result.SwarmID, WSMessage{
			Type:   EventFounderChanged,
			UserID: result.NewFounderID,
		}, &Notification{
			Title: "Swarm founder changed",
			Body:  "Your swarm has a new founder.",
			Data:  map[string]string{"swarm_id": result.SwarmID, "type": EventFounderChanged},
		})
	}

	return result, nil
}

// RenameSwarm renames the swarm. Only the founder may do this.
func (s *SwarmService) RenameSwarm(ctx context.Context, userID, swarmID, name string) (swarm *models.Swarm, err error) {
	defer func() { s.metrics.membership("rename", err) }()

	name, err = NormalizeName(name)
	if err != nil {
		return nil, err
	}

	if err := s.swarms.Rename(ctx, swarmID, userID, name); err != nil {
		return nil, err
	}

	swarm, err = s.swarms.GetByID(ctx, swarmID)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, swarmID, WSMessage{
		Type:   EventSwarmRenamed,
		UserID: userID,
		Data:   map[string]string{"name": swarm.Name},
	}, nil)

	return swarm, nil
}

// GetSwarmDetails returns the swarm and its members, highest XP first
func (s *SwarmService) GetSwarmDetails(ctx context.Context, swarmID string) (*models.Swarm, []models.SwarmMember, error) {
	swarm, err := s.swarms.GetByID(ctx, swarmID)
	if err != nil {
		return nil, nil, err
	}

	users, err := s.users.ListBySwarm(ctx, swarmID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list members: %w", err)
	}

	members := make([]models.SwarmMember, 0, len(users))
	for _, u := range users {
		members = append(members, models.SwarmMember{
			ID:             u.ID,
			Name:           u.Name,
			AvatarSeed:     u.AvatarSeed,
			XP:             u.XP,
			CollectedCount: u.LocalCollectedCount(),
			IsFounder:      u.ID == swarm.FounderID,
		})
	}
	return swarm, members, nil
}

// GetSwarmByCode looks a swarm up by invite code. It returns nil when no swarm
// uses the code.
func (s *SwarmService) GetSwarmByCode(ctx context.Context, code string) (*models.Swarm, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	swarm, err := s.swarms.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrSwarmNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return swarm, nil
}

// GetUserSwarm returns the user's current swarm, or nil if they have none
func (s *SwarmService) GetUserSwarm(ctx context.Context, userID string) (*models.Swarm, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.InSwarm() {
		return nil, nil
	}

	swarm, err := s.swarms.GetByID(ctx, *user.SwarmID)
	if err != nil {
		if errors.Is(err, models.ErrSwarmNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return swarm, nil
}

// GetSwarmCollection returns the distinct non-vacation items collected by the
// swarm's members
func (s *SwarmService) GetSwarmCollection(ctx context.Context, swarmID string) ([]string, error) {
	if _, err := s.swarms.GetByID(ctx, swarmID); err != nil {
		return nil, err
	}

	members, err := s.users.ListBySwarm(ctx, swarmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return CollectionIDs(members), nil
}

// InviteLink builds the shareable invite URL for a swarm. It is empty when no
// base URL is configured.
func (s *SwarmService) InviteLink(swarm *models.Swarm) string {
	if s.inviteBaseURL == "" || swarm == nil {
		return ""
	}
	link := s.inviteBaseURL + "/" + swarm.InviteCode
	if name := slug.Make(swarm.Name); name != "" {
		link += "/" + name
	}
	return link
}
