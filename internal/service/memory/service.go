// Package memory orchestrates the per-user conversation memory
// aggregate: fact and summary extraction at conversation end, the
// aggregate's lifecycle (add, prune, consolidate), and reconciliation
// against remote archive snapshots.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/internal/storage/tiered"
	"github.com/sandevgo/vitalmem/pkg/log"
)

// memoryKey is the natural key of the aggregate record per user.
const memoryKey = "memory"

type Service struct {
	storage   *tiered.Adapter
	index     core.SearchIndex
	extractor core.FactExtractor
	archive   core.ArchiveClient
	sched     *Scheduler
	cfg       *config.MemoryConfig

	mu       sync.Mutex
	lastSync map[string]time.Time
}

func NewService(
	storage *tiered.Adapter,
	index core.SearchIndex,
	extractor core.FactExtractor,
	archive core.ArchiveClient,
	cfg *config.MemoryConfig,
) *Service {
	return &Service{
		storage:   storage,
		index:     index,
		extractor: extractor,
		archive:   archive,
		sched:     NewScheduler(),
		cfg:       cfg,
		lastSync:  make(map[string]time.Time),
	}
}

type ProcessOptions struct {
	ThreadID       string
	UserID         string
	SkipExtraction bool
	ForceSync      bool
}

type ProcessResult struct {
	FactsAdded int
	Summary    core.SessionSummary
}

// ProcessConversationEnd runs the end-of-conversation pipeline:
// gate, parallel extraction, persistence, pruning, and a scheduled
// (non-blocking) cloud sync. Returns nil when the conversation lacks
// substance or extraction was skipped.
func (s *Service) ProcessConversationEnd(ctx context.Context, messages []core.Message, opts ProcessOptions) (*ProcessResult, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if opts.SkipExtraction || !HasSubstance(messages) {
		return nil, nil
	}

	logger := log.FromCtx(ctx)

	// Fan out both extraction calls; each branch degrades on its own.
	facts, summary := s.extractParallel(ctx, messages)
	if summary == nil {
		summary = fallbackSummary(messages)
	}
	summary.MessageCount = len(messages)

	mem, err := s.loadOrCreate(ctx, opts.UserID)
	if err != nil {
		return nil, err
	}

	var newFactIDs, indexFactIDs []string
	for _, fact := range facts {
		storedID, added := upsertFact(mem, fact)
		if added {
			newFactIDs = append(newFactIDs, storedID)
		}
		indexFactIDs = append(indexFactIDs, storedID)
	}
	summary.ExtractedFacts = newFactIDs

	insertSession(mem, *summary)
	mem.TotalSessions++
	mem.TotalFactsExtracted += len(newFactIDs)
	mem.Touch()

	if err := s.save(ctx, mem); err != nil {
		return nil, err
	}

	s.indexSession(ctx, opts.UserID, *summary)
	// Merged facts are included: a dedup hit refreshes context and
	// confidence on the existing fact, and the index must follow
	for _, id := range indexFactIDs {
		if fact := mem.FindFact(id); fact != nil {
			s.indexFact(ctx, opts.UserID, *fact)
		}
	}

	if _, _, err := s.PruneMemory(ctx, opts.UserID); err != nil {
		logger.Warn().Err(err).Msg("memory pruning failed")
	}

	s.scheduleSync(opts.UserID, opts.ForceSync)

	logger.Info().
		Str("user", opts.UserID).
		Int("facts", len(newFactIDs)).
		Str("importance", string(summary.Importance)).
		Msg("conversation processed")

	return &ProcessResult{FactsAdded: len(newFactIDs), Summary: *summary}, nil
}

// extractParallel runs fact and summary extraction concurrently. A
// failure in one branch never cancels the other.
func (s *Service) extractParallel(ctx context.Context, messages []core.Message) ([]core.CriticalFact, *core.SessionSummary) {
	logger := log.FromCtx(ctx)

	var (
		wg      sync.WaitGroup
		facts   []core.CriticalFact
		summary *core.SessionSummary
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		if facts, err = s.extractor.ExtractFacts(ctx, messages); err != nil {
			logger.Warn().Err(err).Msg("fact extraction failed")
			facts = nil
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if summary, err = s.extractor.SummarizeSession(ctx, messages); err != nil {
			logger.Warn().Err(err).Msg("summary extraction failed")
			summary = nil
		}
	}()
	wg.Wait()

	return facts, summary
}

// fallbackSummary builds a deterministic synopsis from the first user
// message when summary extraction is unavailable.
func fallbackSummary(messages []core.Message) *core.SessionSummary {
	synopsis := "Conversation about health."
	for _, m := range messages {
		if m.Role == core.RoleUser && strings.TrimSpace(m.Content) != "" {
			first := strings.TrimSpace(m.Content)
			// Truncate on a rune boundary so multi-byte content stays
			// valid UTF-8
			if runes := []rune(first); len(runes) > 120 {
				first = string(runes[:120]) + "..."
			}
			synopsis = "Discussed: " + first
			break
		}
	}
	return &core.SessionSummary{
		ID:         uuid.NewString(),
		Date:       time.Now(),
		Summary:    synopsis,
		Topics:     detectTopics(messages),
		Importance: core.ImportanceLow,
	}
}

// GetMemory returns the aggregate, creating an empty one lazily.
func (s *Service) GetMemory(ctx context.Context, userID string) (*core.ConversationMemory, error) {
	return s.loadOrCreate(ctx, userID)
}

// ClearMemory is the explicit user memory wipe: the aggregate record
// and its indexed documents are removed, and any scheduled sync is
// dropped. Daily-log and profile documents survive; their records do.
func (s *Service) ClearMemory(ctx context.Context, userID string) error {
	s.sched.Cancel(userID)

	if err := s.storage.Delete(ctx, userID, core.KindConversationMemory, memoryKey); err != nil {
		return fmt.Errorf("failed to delete memory record: %w", err)
	}
	if err := s.index.DeleteByUserKind(ctx, userID, core.KindConversationMemory); err != nil {
		return fmt.Errorf("failed to clear search index: %w", err)
	}

	s.mu.Lock()
	delete(s.lastSync, userID)
	s.mu.Unlock()

	log.FromCtx(ctx).Info().Str("user", userID).Msg("memory cleared")
	return nil
}

// Shutdown drops scheduled-but-not-started syncs. In-flight uploads
// are never cancelled mid-flight.
func (s *Service) Shutdown(ctx context.Context) error {
	s.sched.Stop()
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	return nil
}

func (s *Service) loadOrCreate(ctx context.Context, userID string) (*core.ConversationMemory, error) {
	var mem core.ConversationMemory
	err := s.storage.Get(ctx, userID, core.KindConversationMemory, memoryKey, &mem)
	if err == nil {
		if mem.Preferences == nil {
			mem.Preferences = make(map[string]string)
		}
		return &mem, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	return core.NewConversationMemory(userID), nil
}

func (s *Service) save(ctx context.Context, mem *core.ConversationMemory) error {
	if err := s.storage.Put(ctx, mem.UserID, core.KindConversationMemory, memoryKey, mem); err != nil {
		return fmt.Errorf("failed to persist conversation memory: %w", err)
	}
	return nil
}

func (s *Service) indexFact(ctx context.Context, userID string, fact core.CriticalFact) {
	content := string(fact.Category) + " " + fact.Value
	if fact.Context != "" {
		content += " " + fact.Context
	}
	err := s.index.Index(ctx, core.SearchDocument{
		ID:        "fact:" + fact.ID,
		UserID:    userID,
		Kind:      core.KindConversationMemory,
		Content:   content,
		CreatedAt: fact.DateIdentified,
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("fact", fact.ID).Msg("failed to index fact")
	}
}

func (s *Service) indexSession(ctx context.Context, userID string, session core.SessionSummary) {
	err := s.index.Index(ctx, core.SearchDocument{
		ID:        "session:" + session.ID,
		UserID:    userID,
		Kind:      core.KindConversationMemory,
		Content:   session.Summary + " " + strings.Join(session.Topics, " "),
		CreatedAt: session.Date,
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("session", session.ID).Msg("failed to index session")
	}
}
