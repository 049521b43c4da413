package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/internal/storage/tiered"
	"github.com/sandevgo/vitalmem/pkg/log"
)

// profileKey is the natural key for the single profile record per user.
const profileKey = "profile"

type ProfileStore struct {
	storage *tiered.Adapter
	index   core.SearchIndex
}

func NewProfileStore(storage *tiered.Adapter, index core.SearchIndex) *ProfileStore {
	return &ProfileStore{storage: storage, index: index}
}

// GetOrCreateProfile loads the user's profile, creating an empty one
// on first access.
func (s *ProfileStore) GetOrCreateProfile(ctx context.Context, userID string) (*core.HealthProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var profile core.HealthProfile
	err := s.storage.Get(ctx, userID, core.KindHealthProfile, profileKey, &profile)
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	profile = core.HealthProfile{
		UserID:    userID,
		Persona:   core.Persona{Tone: "supportive", DetailLevel: "moderate", Encouragement: "balanced"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, &profile); err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Info().Str("user", userID).Msg("created health profile")
	return &profile, nil
}

// UpdateProfilePatterns replaces the derived patterns, assigning ids
// to new ones and dropping entries without a description.
func (s *ProfileStore) UpdateProfilePatterns(ctx context.Context, userID string, patterns []core.Pattern) (*core.HealthProfile, error) {
	profile, err := s.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := make([]core.Pattern, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p.Description) == "" {
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.ObservedAt.IsZero() {
			p.ObservedAt = time.Now()
		}
		kept = append(kept, p)
	}

	profile.Patterns = kept
	profile.UpdatedAt = time.Now()
	if err := s.save(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdatePersona replaces the communication-style persona.
func (s *ProfileStore) UpdatePersona(ctx context.Context, userID string, persona core.Persona) (*core.HealthProfile, error) {
	profile, err := s.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.Persona = persona
	profile.UpdatedAt = time.Now()
	if err := s.save(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *ProfileStore) save(ctx context.Context, profile *core.HealthProfile) error {
	if err := s.storage.Put(ctx, profile.UserID, core.KindHealthProfile, profileKey, profile); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}

	if text := profileSearchText(profile); text != "" {
		if err := s.index.Index(ctx, core.SearchDocument{
			ID:        "profile:" + profile.UserID,
			UserID:    profile.UserID,
			Kind:      core.KindHealthProfile,
			Content:   text,
			CreatedAt: profile.UpdatedAt,
		}); err != nil {
			return fmt.Errorf("profile stored but not indexed: %w", err)
		}
	}
	return nil
}

func profileSearchText(profile *core.HealthProfile) string {
	if len(profile.Patterns) == 0 {
		return ""
	}
	parts := make([]string, 0, len(profile.Patterns))
	for _, p := range profile.Patterns {
		parts = append(parts, p.Kind+" "+p.Description)
	}
	return "health patterns " + strings.Join(parts, " ")
}
